package render

import (
	"strings"

	"github.com/lessonforge/lessonforge/internal/document"
)

// SegmentKind discriminates the two segment shapes.
type SegmentKind string

const (
	// SegmentKindHTML is a contiguous run of sanitized markup.
	SegmentKindHTML SegmentKind = "html"
	// SegmentKindQuiz is one interactive quiz hand-off.
	SegmentKindQuiz SegmentKind = "quiz"
)

// QuizRef carries the reference and configuration the interactive quiz
// component needs; the quiz definition itself is resolved externally.
type QuizRef struct {
	QuizID           string `json:"quizId"`
	PassingScore     *int   `json:"passingScore,omitempty"`
	TimeLimitSeconds *int   `json:"timeLimitSeconds,omitempty"`
}

// Segment is one contiguous run of either markup or a single quiz, in
// document order.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	HTML string      `json:"html,omitempty"`
	Quiz *QuizRef    `json:"quiz,omitempty"`
}

// SegmentContent walks the node list in order, accumulating markup
// across consecutive non-quiz nodes and flushing the buffer whenever a
// quiz node is reached. Each quiz node yields exactly one quiz segment;
// quiz content is never flattened into markup. Segment order always
// matches source node order.
func (r *Reader) SegmentContent(nodes []document.Node) []Segment {
	segments := make([]Segment, 0, len(nodes))
	var buffer strings.Builder

	flush := func() {
		if buffer.Len() == 0 {
			return
		}
		segments = append(segments, Segment{Kind: SegmentKindHTML, HTML: buffer.String()})
		buffer.Reset()
	}

	for _, node := range nodes {
		if node.Type == document.NodeTypeCustomQuiz {
			flush()
			segments = append(segments, Segment{Kind: SegmentKindQuiz, Quiz: quizRefFromNode(node)})
			continue
		}
		r.renderNode(&buffer, node)
	}
	flush()

	return segments
}

// SegmentDocument is SegmentContent applied to a document root.
func (r *Reader) SegmentDocument(root document.Node) []Segment {
	if root.Type == document.NodeTypeDoc {
		return r.SegmentContent(root.Content)
	}
	return r.SegmentContent([]document.Node{root})
}

func quizRefFromNode(node document.Node) *QuizRef {
	ref := &QuizRef{QuizID: node.AttrString("quizId", "")}
	if score := node.AttrInt("passingScore", -1); score >= 0 {
		ref.PassingScore = &score
	}
	if limit := node.AttrInt("timeLimit", -1); limit >= 0 {
		ref.TimeLimitSeconds = &limit
	}
	return ref
}
