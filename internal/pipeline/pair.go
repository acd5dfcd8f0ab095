package pipeline

import (
	"context"
	"fmt"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/fourvec"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/selection"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/config"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/kafka"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/resilience"
)

// LeptonKinematics is one lepton's momentum as published downstream.
type LeptonKinematics struct {
	Pt  float64 `json:"pt"`
	Eta float64 `json:"eta"`
	Phi float64 `json:"phi"`
}

// PairRecord is the wire form of a selected dilepton pair.
type PairRecord struct {
	Run      uint64            `json:"run"`
	Lumi     uint64            `json:"lumi"`
	Event    uint64            `json:"event"`
	Channel  selection.Channel `json:"channel"`
	SumPt    float64           `json:"sum_pt"`
	Mass     float64           `json:"mass"`
	LepMinus LeptonKinematics  `json:"lep_minus"`
	LepPlus  LeptonKinematics  `json:"lep_plus"`
}

func kinematics(v fourvec.Vec) LeptonKinematics {
	return LeptonKinematics{Pt: v.Pt(), Eta: v.Eta(), Phi: v.Phi()}
}

// NewPairRecord builds the publishable record for a valid selection result.
func NewPairRecord(ev *event.Event, ch selection.Channel, res *selection.Result) PairRecord {
	return PairRecord{
		Run:      ev.Run,
		Lumi:     ev.Lumi,
		Event:    ev.Number,
		Channel:  ch,
		SumPt:    res.SumPt,
		Mass:     res.LepMinus.Add(res.LepPlus).M(),
		LepMinus: kinematics(res.LepMinus),
		LepPlus:  kinematics(res.LepPlus),
	}
}

// Key returns the Kafka partition key. Keying by run and event number keeps
// all channels of one event on the same partition.
func (r PairRecord) Key() string {
	return fmt.Sprintf("%d:%d", r.Run, r.Event)
}

// PairPublisher delivers selected pairs to a downstream consumer.
type PairPublisher interface {
	PublishPair(ctx context.Context, rec PairRecord) error
	Close() error
}

// KafkaPairPublisher publishes pair records to the selected-pairs topic,
// guarded by a circuit breaker so a broker outage cannot stall the job.
type KafkaPairPublisher struct {
	producer *kafka.Producer
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig
}

// NewKafkaPairPublisher creates a publisher for cfg's selected-pairs topic.
func NewKafkaPairPublisher(cfg config.KafkaConfig) *KafkaPairPublisher {
	return &KafkaPairPublisher{
		producer: kafka.NewProducer(cfg, cfg.Topics.SelectedPairs),
		breaker:  resilience.NewCircuitBreaker("pair-publisher", resilience.CircuitBreakerConfig{}),
		retry:    resilience.RetryConfig{MaxAttempts: 3},
	}
}

// PublishPair writes one record, retrying transient broker errors.
func (p *KafkaPairPublisher) PublishPair(ctx context.Context, rec PairRecord) error {
	return p.breaker.Execute(func() error {
		return resilience.Retry(ctx, "publish-pair", p.retry, func() error {
			return p.producer.Publish(ctx, kafka.Message{Key: rec.Key(), Value: rec})
		})
	})
}

// Close flushes and closes the underlying producer.
func (p *KafkaPairPublisher) Close() error {
	return p.producer.Close()
}
