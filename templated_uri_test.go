package uxios

import (
	"reflect"
	"testing"
)

func TestTemplatedURIParts(t *testing.T) {
	uri := TemplatedURI("https://api.test/{org}/repos/{repo}/issues/{org}")
	if got := uri.Parts(); !reflect.DeepEqual(got, []string{"org", "repo"}) {
		t.Errorf("Expected [org repo], got %v", got)
	}
	if got := TemplatedURI("https://api.test/plain").Parts(); len(got) != 0 {
		t.Errorf("Expected no parts, got %v", got)
	}
	if got := TemplatedURI("https://api.test/%7Bid%7D").Parts(); !reflect.DeepEqual(got, []string{"id"}) {
		t.Errorf("Escaped braces should be recognized, got %v", got)
	}
}

func TestTemplatedURIExpand(t *testing.T) {
	params := NewParams("id", "a b/c", "page", "2")
	uri := TemplatedURI("https://api.test/items/{id}/{missing}")

	got := uri.Expand(params)
	want := "https://api.test/items/a%20b%2Fc/{missing}"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if !params.Has("id") {
		t.Error("Expand() must not consume parameters")
	}
}

func TestTemplatedURIExpandConsuming(t *testing.T) {
	params := NewParams("id", "42", "page", "2")
	got := TemplatedURI("users/{id}").ExpandConsuming(params)

	if got != "users/42" {
		t.Errorf("Expected users/42, got %s", got)
	}
	if params.Has("id") {
		t.Error("Expected id to be consumed")
	}
	if params.Get("page") != "2" {
		t.Error("Unrelated parameters must be kept")
	}
}
