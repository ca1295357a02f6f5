package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

type checkpointSettings struct {
	Name     string   `json:"name"`
	Revision int64    `json:"revision"`
	Retain   int      `json:"retain"`
	Labels   []string `json:"labels"`
	Backend  backend  `json:"backend"`
}

type backend struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_checkpoints.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder(buildOptions(tc)...)
			result, err := decoder.Decode(Context{Source: tc.Source, Section: tc.Section}, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded settings mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestDecodeRejectsNilPayload(t *testing.T) {
	_, err := NewDecoder[checkpointSettings]().Decode(Context{Source: "host.yaml"}, nil)
	if err == nil || !strings.Contains(err.Error(), "payload is nil for host.yaml") {
		t.Fatalf("expected nil payload error, got %v", err)
	}
}

func TestDecodeDoesNotMutateCallerPayload(t *testing.T) {
	payload := map[string]any{"name": "ledger", "backend": "badger:/data"}
	decoder := NewDecoder(WithPreHook[checkpointSettings](backendShorthand))

	if _, err := decoder.Decode(Context{}, payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["backend"] != "badger:/data" {
		t.Fatalf("expected caller payload untouched, got %#v", payload["backend"])
	}
}

func TestUseNumberKeepsNumericPrecision(t *testing.T) {
	type loose struct {
		Values map[string]any `json:"values"`
	}
	decoder := NewDecoder(WithUseNumber[loose]())
	out, err := decoder.Decode(Context{}, map[string]any{"values": map[string]any{"revision": 9007199254740993}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	number, ok := out.Values["revision"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", out.Values["revision"])
	}
	if number.String() != "9007199254740993" {
		t.Fatalf("expected precise number, got %s", number)
	}
}

func TestContextString(t *testing.T) {
	cases := map[Context]string{
		{}:                                "<payload>",
		{Source: "env"}:                   "env",
		{Source: "env", Section: "stack"}: "env/stack",
	}
	for ctx, want := range cases {
		if got := ctx.String(); got != want {
			t.Fatalf("Context%+v.String() = %q, want %q", ctx, got, want)
		}
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[checkpointSettings] {
	options := []DecoderOption[checkpointSettings]{}
	for _, name := range tc.Options {
		switch name {
		case "use_number":
			options = append(options, WithUseNumber[checkpointSettings]())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[checkpointSettings]())
		}
	}
	for _, name := range tc.PreHooks {
		if name == "backend_shorthand" {
			options = append(options, WithPreHook[checkpointSettings](backendShorthand))
		}
	}
	for _, name := range tc.PostHooks {
		if name == "default_label" {
			options = append(options, WithPostHook[checkpointSettings](defaultLabel))
		}
	}
	if tc.CustomDecoder == "embedded_json" {
		options = append(options, WithCustomDecoder[checkpointSettings](embeddedJSON))
	}
	return options
}

func backendShorthand(_ Context, payload map[string]any) (map[string]any, error) {
	value, ok := payload["backend"].(string)
	if !ok {
		return payload, nil
	}
	kind, path, found := strings.Cut(value, ":")
	if !found || kind == "" || path == "" {
		return nil, fmt.Errorf("invalid backend shorthand %q", value)
	}
	payload["backend"] = map[string]any{"kind": kind, "path": path}
	return payload, nil
}

func defaultLabel(ctx Context, settings *checkpointSettings) error {
	if settings == nil {
		return errors.New("settings is nil")
	}
	if len(settings.Labels) == 0 {
		settings.Labels = []string{fmt.Sprintf("%s:%s", ctx.Section, settings.Name)}
	}
	return nil
}

func embeddedJSON(ctx Context, payload map[string]any) (checkpointSettings, error) {
	var out checkpointSettings
	raw, ok := payload["document"].(string)
	if !ok || raw == "" {
		return out, fmt.Errorf("missing document for %s", ctx)
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return checkpointSettings{}, err
	}
	return out, nil
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name          string             `json:"name"`
	Source        string             `json:"source"`
	Section       string             `json:"section"`
	Input         map[string]any     `json:"input"`
	Expect        checkpointSettings `json:"expect"`
	ExpectErr     string             `json:"expectErr"`
	PreHooks      []string           `json:"preHooks"`
	PostHooks     []string           `json:"postHooks"`
	Options       []string           `json:"options"`
	CustomDecoder string             `json:"customDecoder"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(file), "testdata", name))
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
