package layout

import (
	"testing"

	"github.com/flowschema/evalengine/pkg/evalpath"
)

type testGetter map[string]any

func (g testGetter) Get(p evalpath.Path) (any, bool) {
	v, ok := g[p.String()]
	return v, ok
}

func TestResolveSyncsConditionFromCurrentData(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"child": map[string]any{
				"condition": map[string]any{
					"hidden": map[string]any{"var": "flag"},
				},
			},
		},
	}
	layouts := map[string]any{
		"/form": map[string]any{
			"elements": []any{
				map[string]any{"$ref": "/child"},
			},
		},
	}

	data := testGetter{"/child/condition/hidden": true}

	resolved, err := Resolve(schema, layouts, data)
	if err != nil {
		t.Fatal(err)
	}
	form := resolved["/form"].(map[string]any)
	elements := form["elements"].([]any)
	el := elements[0].(map[string]any)
	cond := el["condition"].(map[string]any)
	if cond["hidden"] != true {
		t.Fatalf("expected condition.hidden synced to true, got %#v", cond["hidden"])
	}
	if el["$fullpath"] != "child" {
		t.Fatalf("expected $fullpath 'child', got %#v", el["$fullpath"])
	}
	if el["$path"] != "child" {
		t.Fatalf("expected $path 'child', got %#v", el["$path"])
	}
}

func TestResolveMergesElementOwnKeysOverCopy(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"child": map[string]any{
				"title": "Original",
			},
		},
	}
	layouts := map[string]any{
		"/form": map[string]any{
			"elements": []any{
				map[string]any{"$ref": "/child", "title": "Overridden"},
			},
		},
	}
	resolved, err := Resolve(schema, layouts, testGetter{})
	if err != nil {
		t.Fatal(err)
	}
	el := resolved["/form"].(map[string]any)["elements"].([]any)[0].(map[string]any)
	if el["title"] != "Overridden" {
		t.Fatalf("expected element's own key to win, got %#v", el["title"])
	}
}
