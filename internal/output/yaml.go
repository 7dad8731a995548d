package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"wpmu/internal/report"
)

// writeYAML emits a sequence of mappings built as yaml.Node trees so the keys
// keep header order.
func writeYAML(w io.Writer, rep *report.Report) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for i := range rep.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, col := range rep.Header {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: col}
			val, err := scalarNode(rep.Rows[i][col])
			if err != nil {
				return fmt.Errorf("encoding %s: %w", col, err)
			}
			m.Content = append(m.Content, key, val)
		}
		seq.Content = append(seq.Content, m)
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{seq}}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func scalarNode(v any) (*yaml.Node, error) {
	if v == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}
