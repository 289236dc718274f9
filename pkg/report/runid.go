package report

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// RunIDGenerator 运行 ID 生成器
// 每次运行一个 ID，写进所有输出，区分同一 instrument 的多次重放
type RunIDGenerator struct {
	node *snowflake.Node
}

// NewRunIDGenerator nodeID 范围 0-1023
func NewRunIDGenerator(nodeID int64) (*RunIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &RunIDGenerator{node: node}, nil
}

// Next 生成 ID
func (g *RunIDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}
