package model

// Point is a 2D position on the board, in board coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Element is a single board item (sticky note, shape, text block, image...).
// Type-specific fields live in Props; identity is unique within a document.
type Element struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
	Text   string         `json:"text,omitempty"`
	Color  string         `json:"color,omitempty"`
	Props  map[string]any `json:"props,omitempty"`
}

// Stroke is a freehand drawing: an ordered point list plus pen attributes.
type Stroke struct {
	ID        string  `json:"id"`
	Points    []Point `json:"points"`
	Color     string  `json:"color,omitempty"`
	Width     float64 `json:"width,omitempty"`
	CreatedAt int64   `json:"createdAt,omitempty"`
}

// DocumentState is the full shared board content under collaboration.
// Annotations are keyed by element ID; an entry for a deleted element is
// allowed and simply orphaned.
type DocumentState struct {
	Elements    []Element           `json:"elements"`
	Annotations map[string][]string `json:"annotations,omitempty"`
	Strokes     []Stroke            `json:"strokes,omitempty"`
}

// NewDocumentState returns an empty, non-nil document.
func NewDocumentState() *DocumentState {
	return &DocumentState{
		Elements:    []Element{},
		Annotations: map[string][]string{},
		Strokes:     []Stroke{},
	}
}

// Clone returns a fully independent deep copy. Stored history and ledger
// entries must never alias mutable state, so every nested slice and map is
// copied.
func (s *DocumentState) Clone() *DocumentState {
	if s == nil {
		return nil
	}
	out := &DocumentState{}
	if s.Elements != nil {
		out.Elements = make([]Element, len(s.Elements))
		for i, el := range s.Elements {
			out.Elements[i] = el.clone()
		}
	}
	if s.Annotations != nil {
		out.Annotations = make(map[string][]string, len(s.Annotations))
		for id, notes := range s.Annotations {
			cp := make([]string, len(notes))
			copy(cp, notes)
			out.Annotations[id] = cp
		}
	}
	if s.Strokes != nil {
		out.Strokes = make([]Stroke, len(s.Strokes))
		for i, st := range s.Strokes {
			out.Strokes[i] = st.clone()
		}
	}
	return out
}

func (e Element) clone() Element {
	out := e
	if e.Props != nil {
		out.Props = make(map[string]any, len(e.Props))
		for k, v := range e.Props {
			out.Props[k] = v
		}
	}
	return out
}

func (s Stroke) clone() Stroke {
	out := s
	if s.Points != nil {
		out.Points = make([]Point, len(s.Points))
		copy(out.Points, s.Points)
	}
	return out
}
