package search

import "github.com/poiesic/mediasearch/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(req Request)
	AfterEmbedding(dims int)
	AfterMatch(matches []*core.Match)
	AfterEnrichment(records map[string]*core.Record)
	Degraded(err error)
	Finish(resp *Response)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Request)                           {}
func (n *noopMonitor) AfterEmbedding(_ int)                      {}
func (n *noopMonitor) AfterMatch(_ []*core.Match)                {}
func (n *noopMonitor) AfterEnrichment(_ map[string]*core.Record) {}
func (n *noopMonitor) Degraded(_ error)                          {}
func (n *noopMonitor) Finish(_ *Response)                        {}
