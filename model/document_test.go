package model

import (
	"reflect"
	"testing"
)

func TestDocumentCloneIsDeep(t *testing.T) {
	orig := &DocumentState{
		Elements: []Element{
			{ID: "el-1", Type: "shape", X: 1, Y: 2, Props: map[string]any{"fill": "red"}},
		},
		Annotations: map[string][]string{"el-1": {"first"}},
		Strokes: []Stroke{
			{ID: "st-1", Points: []Point{{X: 1, Y: 1}}, Color: "#000", Width: 2},
		},
	}

	cp := orig.Clone()
	if !reflect.DeepEqual(cp, orig) {
		t.Fatalf("clone differs: %+v vs %+v", cp, orig)
	}

	cp.Elements[0].Props["fill"] = "blue"
	cp.Annotations["el-1"][0] = "changed"
	cp.Strokes[0].Points[0].X = 99
	cp.Elements = append(cp.Elements, Element{ID: "el-2"})

	if orig.Elements[0].Props["fill"] != "red" {
		t.Error("element props shared between clone and original")
	}
	if orig.Annotations["el-1"][0] != "first" {
		t.Error("annotations shared between clone and original")
	}
	if orig.Strokes[0].Points[0].X != 1 {
		t.Error("stroke points shared between clone and original")
	}
	if len(orig.Elements) != 1 {
		t.Error("element slice shared between clone and original")
	}
}

func TestCloneNilReceiver(t *testing.T) {
	var st *DocumentState
	if st.Clone() != nil {
		t.Error("nil document should clone to nil")
	}
}

func TestNewDocumentStateIsEmptyButInitialized(t *testing.T) {
	st := NewDocumentState()
	if st.Elements == nil || st.Annotations == nil || st.Strokes == nil {
		t.Errorf("fresh document has nil collections: %+v", st)
	}
	if len(st.Elements)+len(st.Annotations)+len(st.Strokes) != 0 {
		t.Errorf("fresh document not empty: %+v", st)
	}
}
