package catalog

// Topic is a single scored line item within a block. A topic either carries a
// point weight or the not-applicable sentinel (HasPoints=false), never both.
type Topic struct {
	Label    string
	Critical bool
	// MaxPoints is the topic weight. Only meaningful when HasPoints is true.
	MaxPoints float64
	// HasPoints is false for topics marked not-applicable in the rubric.
	HasPoints bool
	// Applies reports whether the topic is asked for this interaction type.
	Applies  bool
	Guidance string
}

// Block groups related topics under a named section of the rubric.
type Block struct {
	Name   string
	Topics []Topic
}

// Catalog is an immutable, versioned rubric for one interaction type.
type Catalog struct {
	Name    string
	Version string
	Layout  LayoutVariant
	Blocks  []Block
}

// LayoutVariant selects the spreadsheet rendering strategy for a catalog.
type LayoutVariant string

const (
	// LayoutHorizontal renders one data row per audit with topic columns.
	LayoutHorizontal LayoutVariant = "horizontal"
	// LayoutVertical renders one row per topic with a score column.
	LayoutVertical LayoutVariant = "vertical"
)

// MaxPossibleScore sums the weights of all applicable point-carrying topics.
// Whether a topic was actually evaluated does not change the denominator.
func (c Catalog) MaxPossibleScore() float64 {
	var total float64
	for _, block := range c.Blocks {
		for _, topic := range block.Topics {
			if topic.Applies && topic.HasPoints {
				total += topic.MaxPoints
			}
		}
	}
	return total
}

// ApplicableTopics returns (block name, topic) pairs for every topic that
// applies, in catalog order.
func (c Catalog) ApplicableTopics() []BlockTopic {
	var out []BlockTopic
	for _, block := range c.Blocks {
		for _, topic := range block.Topics {
			if topic.Applies {
				out = append(out, BlockTopic{Block: block.Name, Topic: topic})
			}
		}
	}
	return out
}

// TopicCount returns the total number of topics across all blocks.
func (c Catalog) TopicCount() int {
	n := 0
	for _, block := range c.Blocks {
		n += len(block.Topics)
	}
	return n
}

// BlockTopic pairs a topic with the name of its containing block.
type BlockTopic struct {
	Block string
	Topic Topic
}
