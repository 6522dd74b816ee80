package testdata

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tidwall/gjson"
)

func TestReadSourceNDJSON(t *testing.T) {
	lines, err := ReadSourceNDJSON[json.RawMessage](context.Background(), Source_RideCommute)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	if got := gjson.GetBytes(lines[1], "fixes.#").Int(); got != 60 {
		t.Errorf("second line has %d fixes", got)
	}
	if _, err := Open("./nope.ndjson"); err == nil {
		t.Error("expected an error for a missing fixture")
	}
}
