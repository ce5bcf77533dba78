package engine

import (
	"reflect"
	"testing"
)

func TestParamNames(t *testing.T) {
	cases := []struct {
		pattern string
		want    []string
	}{
		{"/users/{id}", []string{"id"}},
		{"/users/{id}/posts/{post}", []string{"id", "post"}},
		{"/static/path", nil},
		{"/", nil},
	}
	for _, c := range cases {
		if got := ParamNames(c.pattern); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("ParamNames(%q) = %v, want %v", c.pattern, got, c.want)
		}
	}
}

func TestMatchSegments(t *testing.T) {
	pattern := splitPath("/users/{id}/posts/{post}")

	vals, ok := matchSegments(pattern, splitPath("/users/7/posts/99"))
	if !ok {
		t.Fatalf("expected match")
	}
	if !reflect.DeepEqual(vals, []string{"7", "99"}) {
		t.Fatalf("vals = %v", vals)
	}

	if _, ok := matchSegments(pattern, splitPath("/users/7/posts")); ok {
		t.Fatalf("length mismatch should not match")
	}
	if _, ok := matchSegments(pattern, splitPath("/users/7/comments/99")); ok {
		t.Fatalf("literal mismatch should not match")
	}
	if _, ok := matchSegments(splitPath("/"), splitPath("/")); !ok {
		t.Fatalf("root should match root")
	}
}
