package histogram

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/selection"
)

// channelHists is the set of control plots filled per channel.
type channelHists struct {
	mass     *H1D
	sumPt    *H1D
	ptMinus  *H1D
	ptPlus   *H1D
	etaMinus *H1D
	etaPlus  *H1D
}

// Book holds the standard dilepton control plots for all channels plus the
// per-species candidate multiplicity plots. A Book is not safe for
// concurrent filling; workers keep private books and merge them afterwards.
type Book struct {
	channels   map[selection.Channel]*channelHists
	nElectrons *H1D
	nMuons     *H1D
}

// NewBook creates an empty book with the standard binning.
func NewBook() *Book {
	b := &Book{
		channels:   make(map[selection.Channel]*channelHists, len(selection.Channels)),
		nElectrons: NewH1D("n_electrons", 10, 0, 10),
		nMuons:     NewH1D("n_muons", 10, 0, 10),
	}
	for _, ch := range selection.Channels {
		b.channels[ch] = &channelHists{
			mass:     NewH1D(fmt.Sprintf("%s_mass", ch), 50, 0, 400),
			sumPt:    NewH1D(fmt.Sprintf("%s_sum_pt", ch), 50, 0, 400),
			ptMinus:  NewH1D(fmt.Sprintf("%s_pt_minus", ch), 40, 0, 200),
			ptPlus:   NewH1D(fmt.Sprintf("%s_pt_plus", ch), 40, 0, 200),
			etaMinus: NewH1D(fmt.Sprintf("%s_eta_minus", ch), 24, -2.4, 2.4),
			etaPlus:  NewH1D(fmt.Sprintf("%s_eta_plus", ch), 24, -2.4, 2.4),
		}
	}
	return b
}

// FillEvent records the candidate multiplicities of one event.
func (b *Book) FillEvent(ev *event.Event) {
	b.nElectrons.Fill(float64(len(ev.Electrons)))
	b.nMuons.Fill(float64(len(ev.Muons)))
}

// FillPair records a selected pair's kinematics into the channel's plots.
// Invalid results are ignored so callers can fill unconditionally.
func (b *Book) FillPair(ch selection.Channel, res *selection.Result) {
	if !res.Valid() {
		return
	}
	hists, ok := b.channels[ch]
	if !ok {
		return
	}
	hists.mass.Fill(res.LepMinus.Add(res.LepPlus).M())
	hists.sumPt.Fill(res.SumPt)
	hists.ptMinus.Fill(res.LepMinus.Pt())
	hists.ptPlus.Fill(res.LepPlus.Pt())
	hists.etaMinus.Fill(res.LepMinus.Eta())
	hists.etaPlus.Fill(res.LepPlus.Eta())
}

// Merge folds another book's contents into b.
func (b *Book) Merge(other *Book) error {
	pairs := [][2]*H1D{{b.nElectrons, other.nElectrons}, {b.nMuons, other.nMuons}}
	for _, ch := range selection.Channels {
		dst, src := b.channels[ch], other.channels[ch]
		pairs = append(pairs,
			[2]*H1D{dst.mass, src.mass},
			[2]*H1D{dst.sumPt, src.sumPt},
			[2]*H1D{dst.ptMinus, src.ptMinus},
			[2]*H1D{dst.ptPlus, src.ptPlus},
			[2]*H1D{dst.etaMinus, src.etaMinus},
			[2]*H1D{dst.etaPlus, src.etaPlus},
		)
	}
	for _, p := range pairs {
		if err := p[0].Merge(p[1]); err != nil {
			return err
		}
	}
	return nil
}

// Histograms returns every histogram in the book sorted by name.
func (b *Book) Histograms() []*H1D {
	hists := []*H1D{b.nElectrons, b.nMuons}
	for _, ch := range selection.Channels {
		c := b.channels[ch]
		hists = append(hists, c.mass, c.sumPt, c.ptMinus, c.ptPlus, c.etaMinus, c.etaPlus)
	}
	sort.Slice(hists, func(i, j int) bool { return hists[i].Name < hists[j].Name })
	return hists
}

// Lookup returns the named histogram, or nil when absent.
func (b *Book) Lookup(name string) *H1D {
	for _, h := range b.Histograms() {
		if h.Name == name {
			return h
		}
	}
	return nil
}

// ExportCSV writes one CSV file per histogram into dir.
func (b *Book) ExportCSV(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating csv directory: %w", err)
	}
	for _, h := range b.Histograms() {
		path := filepath.Join(dir, h.Name+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := h.WriteCSV(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", path, err)
		}
	}
	return nil
}
