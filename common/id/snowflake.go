// Package id hands out Snowflake IDs for every event the engine stores.
// Incidents and bugs draw from the same sequence, so an event ID is
// unique across both streams and can double as a cluster identity.
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets up the generator. Each running binary gets its own node ID
// (server and worker use different ones) so concurrently minted IDs
// never collide.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns the next event ID. IDs are time-ordered, so newer events
// always sort after older ones.
func New() int64 {
	return node.Generate().Int64()
}
