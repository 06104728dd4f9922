package style_test

import (
	"fmt"

	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

func ExampleClassify() {
	n := &tangle.Node{
		ID:      "ms",
		Payload: &tangle.Payload{ID: "ms"},
		Meta:    tangle.Metadata{MilestoneIndex: tangle.Index(42), Conflicting: true},
	}
	fmt.Println(style.Classify(n, false))
	fmt.Println(style.Classify(n, true))
	// Output:
	// milestone
	// highlight
}
