package backend

import (
	"reflect"
	"testing"

	"owncheck/internal/model"
)

func TestSortFiles(t *testing.T) {
	in := []model.ChangedFile{
		model.NewModification("/b.txt"),
		model.NewAddition("/a.txt"),
		model.NewDeletion("/c.txt"),
		model.NewAddition("/a.txt"), // duplicate
		model.NewRename("/a0.txt", "/d.txt"),
	}

	got := SortFiles(in)
	want := []model.ChangedFile{
		model.NewAddition("/a.txt"),
		model.NewModification("/b.txt"),
		model.NewDeletion("/c.txt"),
		model.NewRename("/a0.txt", "/d.txt"), // renames sort by new path
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortFiles:\n got %+v\nwant %+v", got, want)
	}
}

func TestSortFilesEmpty(t *testing.T) {
	if got := SortFiles(nil); len(got) != 0 {
		t.Errorf("want empty, got %+v", got)
	}
}

func TestDestinationBranchNotFoundError(t *testing.T) {
	err := &DestinationBranchNotFoundError{Project: "proj", Branch: "main"}
	if want := "destination branch main of project proj not found"; err.Error() != want {
		t.Errorf("want %q, got %q", want, err.Error())
	}
}
