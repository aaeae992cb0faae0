package observer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

type AMQPConfig struct {
	URL        string        `yaml:"url"`
	Exchange   string        `yaml:"exchange"`
	RoutingKey string        `yaml:"routing_key"`
	Buffer     int           `yaml:"buffer"`
	Timeout    time.Duration `yaml:"timeout"`
}

func (c *AMQPConfig) ApplyDefaults() {
	if c.Exchange == "" {
		c.Exchange = "perfmon.alerts"
	}
	if c.RoutingKey == "" {
		c.RoutingKey = "perfmon.abnormal"
	}
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Alert is the JSON body published for each abnormal sample.
type Alert struct {
	Host     string        `json:"host"`
	Sample   domain.Sample `json:"sample"`
	Exceeded []string      `json:"exceeded"`
}

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes abnormal samples to a topic exchange. Publishing
// happens on its own goroutine; a full buffer drops the alert.
type AMQPPublisher struct {
	cfg    AMQPConfig
	ch     amqpChannel
	conn   *amqp.Connection
	policy *domain.ThresholdPolicy
	obs    ports.Observability
	host   string

	queue chan domain.Sample
	done  chan struct{}
	once  sync.Once
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(cfg AMQPConfig, policy *domain.ThresholdPolicy, obs ports.Observability) (*AMQPPublisher, error) {
	cfg.ApplyDefaults()
	if cfg.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p := newAMQPPublisher(cfg, ch, policy, obs)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(cfg AMQPConfig, ch amqpChannel, policy *domain.ThresholdPolicy, obs ports.Observability) *AMQPPublisher {
	cfg.ApplyDefaults()
	if policy == nil {
		policy = domain.NewDefaultThresholdPolicy()
	}
	if obs == nil {
		obs = ports.NopObservability{}
	}
	host, _ := os.Hostname()
	p := &AMQPPublisher{
		cfg:    cfg,
		ch:     ch,
		policy: policy,
		obs:    obs,
		host:   host,
		queue:  make(chan domain.Sample, cfg.Buffer),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AMQPPublisher) Name() string { return "amqp" }

// Observe enqueues s when the policy classifies it abnormal.
func (p *AMQPPublisher) Observe(s domain.Sample) {
	if !p.policy.Classify(s) {
		return
	}
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- s:
	default:
		p.obs.IncCounter(ports.MetricObserverDrops, 1)
	}
}

func (p *AMQPPublisher) run() {
	for {
		select {
		case <-p.done:
			return
		case s := <-p.queue:
			if err := p.publish(s); err != nil {
				p.obs.LogError("amqp_publish_failed", err,
					ports.Field{Key: "exchange", Value: p.cfg.Exchange})
			}
		}
	}
}

func (p *AMQPPublisher) publish(s domain.Sample) error {
	body, err := json.Marshal(Alert{Host: p.host, Sample: s, Exceeded: exceeded(p.policy.Snapshot(), s)})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx,
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    s.Timestamp,
			Body:         body,
		},
	)
}

// Close stops publishing and releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	var errs []error
	p.once.Do(func() {
		close(p.done)
		if err := p.ch.Close(); err != nil {
			errs = append(errs, err)
		}
		if p.conn != nil {
			if err := p.conn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func exceeded(t domain.Thresholds, s domain.Sample) []string {
	var out []string
	if t.CPUAbnormal(s.CPUUsage) {
		out = append(out, domain.MetricCPU.String())
	}
	if t.MemoryAbnormal(s.MemoryUsage) {
		out = append(out, domain.MetricMemory.String())
	}
	if t.DiskAbnormal(s.DiskUsage) {
		out = append(out, domain.MetricDisk.String())
	}
	return out
}

var _ ports.Observer = (*AMQPPublisher)(nil)
