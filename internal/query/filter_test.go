package query

import (
	"reflect"
	"testing"

	"giffer/internal/tagstore"
)

func names(entries []tagstore.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Filename
	}
	return out
}

func TestFilter(t *testing.T) {
	t.Parallel()

	snap := tagstore.NewSnapshot([]tagstore.Entry{
		{Filename: "a.gif", Tags: []string{"Funny", "cat"}},
		{Filename: "b.gif"},
		{Filename: "c.gif", Tags: []string{"dog"}},
		{Filename: "d.gif", Tags: []string{"unfunny"}},
	})

	tests := []struct {
		name string
		term string
		want []string
	}{
		{name: "empty term returns all", term: "", want: []string{"a.gif", "b.gif", "c.gif", "d.gif"}},
		{name: "whitespace term returns all", term: "   ", want: []string{"a.gif", "b.gif", "c.gif", "d.gif"}},
		{name: "case insensitive substring", term: "FUN", want: []string{"a.gif", "d.gif"}},
		{name: "trimmed", term: "  dog ", want: []string{"c.gif"}},
		{name: "no match", term: "zebra", want: []string{}},
		{name: "untagged never matches non-empty", term: "b", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := names(Filter(snap, tt.term)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter(%q) = %v, want %v", tt.term, got, tt.want)
			}
		})
	}
}

func TestFilter_ResultIsSubsetInOrder(t *testing.T) {
	t.Parallel()

	snap := tagstore.NewSnapshot([]tagstore.Entry{
		{Filename: "z.gif", Tags: []string{"party"}},
		{Filename: "y.gif", Tags: []string{"nope"}},
		{Filename: "x.gif", Tags: []string{"Party time"}},
	})

	got := Filter(snap, "party")
	if want := []string{"z.gif", "x.gif"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("Filter() = %v, want %v", names(got), want)
	}

	got[0].Tags[0] = "mutated"
	if tags, _ := snap.Get("z.gif"); tags[0] != "party" {
		t.Error("Filter result shares memory with the snapshot")
	}
}

func TestFilter_EmptySnapshot(t *testing.T) {
	t.Parallel()
	if got := Filter(tagstore.Snapshot{}, "x"); len(got) != 0 {
		t.Errorf("Filter(empty) = %v", got)
	}
}
