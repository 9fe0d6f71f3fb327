package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vapixprobe/vapixprobe/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(&StoreOptions{Path: filepath.Join(t.TempDir(), "settings.json")})
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	if got := s.Load(); !reflect.DeepEqual(got, Settings{}) {
		t.Errorf("Load = %+v, want zero value", got)
	}
}

func TestLoadCorruptFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(&StoreOptions{Path: path})
	if got := s.Load(); !reflect.DeepEqual(got, Settings{}) {
		t.Errorf("Load = %+v, want zero value", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	in := Settings{
		IP:           "192.168.0.90",
		Username:     "root",
		Endpoint:     "/vapix/intercom/GetCallStatus",
		JSONFile:     "Normal_Path/GetCallStatus.json",
		SimpleFormat: true,
		TestMode:     types.ModeUnhappy,
		JSONType:     types.JSONRPC,
	}
	s.Save(in)

	if got := s.Load(); !reflect.DeepEqual(got, in) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, in)
	}
}

func TestGeometryBlobSurvivesVerbatim(t *testing.T) {
	blobs := [][]byte{
		[]byte(`{"x":120,"y":80,"w":900,"h":620}`),
		// A blob with the front end's own formatting must not be
		// reflowed by the store.
		[]byte("{ \"x\": 120,\n      \"maximized\": true }"),
	}
	for _, blob := range blobs {
		s := newTestStore(t)
		s.Save(Settings{IP: "10.0.0.5", Geometry: blob})

		got := s.Load()
		if string(got.Geometry) != string(blob) {
			t.Errorf("Geometry = %s, want %s", got.Geometry, blob)
		}
		if got.IP != "10.0.0.5" {
			t.Errorf("IP = %q, want 10.0.0.5", got.IP)
		}
	}
}

func TestSaveWithGeometryIsValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewStore(&StoreOptions{Path: path})
	s.Save(Settings{Geometry: []byte(`{"x":1}`)})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Errorf("settings file is not valid JSON: %s", data)
	}
}
