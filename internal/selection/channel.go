package selection

import "github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"

// Channel identifies a dilepton flavor channel.
type Channel string

const (
	ChannelEE   Channel = "ee"
	ChannelEMu  Channel = "emu"
	ChannelMuMu Channel = "mumu"
)

// Channels lists all flavor channels in a stable order.
var Channels = []Channel{ChannelEE, ChannelEMu, ChannelMuMu}

// Select runs the channel's pair selector against the event, updating best
// in place like the Best* functions do.
func (c Channel) Select(ev *event.Event, best *Result) {
	switch c {
	case ChannelEE:
		BestEE(ev, best)
	case ChannelEMu:
		BestEMu(ev, best)
	case ChannelMuMu:
		BestMuMu(ev, best)
	}
}

// Valid reports whether c names a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEE, ChannelEMu, ChannelMuMu:
		return true
	}
	return false
}
