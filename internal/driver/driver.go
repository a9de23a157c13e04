// Package driver wires the ambient stack (config, logging, metrics,
// tracing, admin, hotreload) to the domain stages (source, prune, filter,
// signing, serialize) into one runnable pipeline, the way an
// internal/app.App wires its config, logger and dispatcher together.
package driver

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/admin"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/config"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/metrics"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/tracing"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/filedest"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/identify"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/kafkadest"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/pipeline"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/resourcemon"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/retrypolicy"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/serialize"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/signing"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/splitter"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/xmlpayload"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/stages/filter"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/stages/prune"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/stages/source"
)

// Aggregator owns the long-lived pieces of a running process: the
// pipeline itself plus the ambient servers and watchers around it.
type Aggregator struct {
	cfg      *config.PipelineConfig
	logger   *logrus.Logger
	pipeline *pipeline.Pipeline[*xmlpayload.Element]
	admin    *admin.Server
	runs     *admin.RunRegistry
	tracer   *tracing.Manager
	producer sarama.SyncProducer
}

// New builds an Aggregator from cfg, translating cfg.FilterRules into
// stages/filter.Rule values. It does not start any background goroutines;
// the caller serves AdminServer() itself if it wants the admin endpoints.
func New(ctx context.Context, cfg *config.PipelineConfig, logger *logrus.Logger) (*Aggregator, error) {
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("driver: tracing: %w", err)
	}

	identifier := identify.NewFirstID[*xmlpayload.Element](identify.DefaultPlaceholder)

	rules := make([]filter.Rule, len(cfg.FilterRules))
	for i, r := range cfg.FilterRules {
		rules[i] = filter.Rule{Attr: r.Attr, Value: r.Value, Authority: r.Authority}
	}
	filterStage := filter.NewStage("stage.filter.metadata-aggregator", rules, identifier)

	destStrategy, producer, err := buildDestinationStrategy(cfg, retrypolicyConfig(cfg.Retry))
	if err != nil {
		return nil, err
	}
	serializeStage := serialize.NewStage[*xmlpayload.Element]("stage.serialize.metadata-aggregator", destStrategy, xmlpayload.Serializer{}, identifier)

	pipelineStages := []stage.Stage[*xmlpayload.Element]{}
	if len(cfg.Source.AdditionalDirectories) > 0 {
		multiSourceStage := buildMultiSourceStage(cfg.Source, cfg.App.Name)
		pipelineStages = append(pipelineStages, metrics.Instrument[*xmlpayload.Element](cfg.App.Name, tracing.Instrument[*xmlpayload.Element](tracer.Tracer(), multiSourceStage)))
	}
	if cfg.Prune.Enabled {
		pruneStage := prune.NewStage("stage.prune.metadata-aggregator", cfg.Prune.BlockedElements, identifier)
		pipelineStages = append(pipelineStages, metrics.Instrument[*xmlpayload.Element](cfg.App.Name, tracing.Instrument[*xmlpayload.Element](tracer.Tracer(), pruneStage)))
	}
	pipelineStages = append(pipelineStages, metrics.Instrument[*xmlpayload.Element](cfg.App.Name, tracing.Instrument[*xmlpayload.Element](tracer.Tracer(), filterStage)))
	if cfg.Signing.Enabled {
		signStage, err := buildSigningStage(cfg.Signing)
		if err != nil {
			return nil, err
		}
		pipelineStages = append(pipelineStages, metrics.Instrument[*xmlpayload.Element](cfg.App.Name, tracing.Instrument[*xmlpayload.Element](tracer.Tracer(), signStage)))
	}
	pipelineStages = append(pipelineStages, metrics.Instrument[*xmlpayload.Element](cfg.App.Name, tracing.Instrument[*xmlpayload.Element](tracer.Tracer(), serializeStage)))

	p := pipeline.New[*xmlpayload.Element]("pipeline.metadata-aggregator", pipelineStages...)

	runs := admin.NewRunRegistry(100)
	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminServer = admin.New(fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port), runs)
	}

	a := &Aggregator{cfg: cfg, logger: logger, pipeline: p, admin: adminServer, runs: runs, tracer: tracer, producer: producer}
	return a, nil
}

// buildMultiSourceStage builds a splitter.Splitter that carries forward
// the items already loaded from sc.Directory (one passthrough child)
// while fanning out a loader child per entry in sc.AdditionalDirectories,
// then deduplicates the merged result by ItemId. It is only wired into
// the pipeline when AdditionalDirectories is non-empty.
func buildMultiSourceStage(sc config.SourceConfig, pipelineName string) *splitter.Splitter[*xmlpayload.Element] {
	children := make([]stage.Stage[*xmlpayload.Element], 0, len(sc.AdditionalDirectories)+1)
	children = append(children, source.NewPassthroughStage("stage.source.primary"))
	for i, dir := range sc.AdditionalDirectories {
		children = append(children, source.NewLoaderStage(fmt.Sprintf("stage.source.additional.%d", i), dir))
	}

	observe := func(childID string, d time.Duration) {
		metrics.SplitterChildDuration.WithLabelValues(pipelineName, childID).Observe(d.Seconds())
	}
	return splitter.New[*xmlpayload.Element]("stage.splitter.metadata-aggregator", children, splitter.DeduplicatingByID[*xmlpayload.Element]{},
		splitter.WithChildObserver[*xmlpayload.Element](observe))
}

// buildDestinationStrategy prefers a file destination when configured,
// falling back to Kafka. It also returns the Kafka producer (nil when
// unused) so the caller can close it on shutdown.
func buildDestinationStrategy(cfg *config.PipelineConfig, retry retrypolicy.Config) (serialize.DestinationStrategy[*xmlpayload.Element], sarama.SyncProducer, error) {
	if cfg.Destinations.File != nil {
		strategy, err := buildFileStrategy(cfg.Destinations.File)
		return strategy, nil, err
	}
	if cfg.Destinations.Kafka != nil {
		return buildKafkaStrategy(cfg.Destinations.Kafka, retry)
	}
	return nil, nil, fmt.Errorf("driver: no destination configured (need destinations.file or destinations.kafka)")
}

// retrypolicyConfig translates the YAML-facing RetryConfig into
// retrypolicy.Config, falling back to retrypolicy.DefaultConfig's values
// field by field when left unset.
func retrypolicyConfig(rc config.RetryConfig) retrypolicy.Config {
	d := retrypolicy.DefaultConfig()
	cfg := retrypolicy.Config{
		InitialInterval: rc.InitialInterval,
		MaxInterval:     rc.MaxInterval,
		MaxElapsedTime:  rc.MaxElapsedTime,
		MaxRetries:      rc.MaxRetries,
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = d.InitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = d.MaxInterval
	}
	if cfg.MaxElapsedTime == 0 {
		cfg.MaxElapsedTime = d.MaxElapsedTime
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	return cfg
}

func buildFileStrategy(fc *config.FileDestinationConfig) (serialize.DestinationStrategy[*xmlpayload.Element], error) {
	codec, suffix := filedest.None, fc.Suffix
	switch fc.Codec {
	case "gzip":
		codec = filedest.Gzip
	case "snappy":
		codec = filedest.Snappy
	case "lz4":
		codec = filedest.LZ4
	}
	if codec != filedest.None && suffix == "" {
		suffix = codec.Suffix()
	}

	base, err := serialize.NewFileStrategy[*xmlpayload.Element](fc.Directory, fc.Prefix, suffix, serialize.Sanitized)
	if err != nil {
		return nil, fmt.Errorf("driver: file destination: %w", err)
	}
	if codec == filedest.None {
		return base, nil
	}
	return filedest.NewCompressingStrategy[*xmlpayload.Element](base, codec, 0), nil
}

func buildKafkaStrategy(kc *config.KafkaDestinationConfig, retry retrypolicy.Config) (serialize.DestinationStrategy[*xmlpayload.Element], sarama.SyncProducer, error) {
	producer, err := kafkadest.NewProducer(kafkadest.Config{
		Brokers: kc.Brokers,
		Topic:   kc.Topic,
		Auth: kafkadest.Auth{
			Enabled:   kc.AuthEnabled,
			Username:  kc.Username,
			Password:  kc.Password,
			Mechanism: kafkaAuthMechanism(kc.AuthMechanism),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("driver: kafka destination: %w", err)
	}
	strategy := kafkadest.NewStrategy[*xmlpayload.Element](producer, kc.Topic, kafkadest.FirstIDKey[*xmlpayload.Element]).WithRetry(retry)
	return strategy, producer, nil
}

// buildSigningStage loads the signing key pair from disk and builds the
// exec stage that signs every item's Element payload in place before it
// reaches serialization.
func buildSigningStage(sc config.SigningConfig) (*stage.General[*xmlpayload.Element], error) {
	key, cert, err := loadKeyPair(sc.KeyFile, sc.CertFile)
	if err != nil {
		return nil, fmt.Errorf("driver: signing: %w", err)
	}

	holder := signing.NewStage[*xmlpayload.Element]("stage.signing.metadata-aggregator.config")
	err = holder.SetConfig(signing.Config[*xmlpayload.Element]{
		Signer:            key,
		Certificate:       cert,
		EmitKeyValue:      sc.EmitKeyValue,
		EmitX509Data:      sc.EmitX509Data,
		InclusivePrefixes: sc.InclusivePrefixes,
		Sha:               shaVariant(sc.ShaVariant),
		StripCR:           true,
		Canonicalize:      xmlpayload.Canonicalize,
		IDAttribute:       xmlpayload.IDAttribute,
	})
	if err != nil {
		return nil, fmt.Errorf("driver: signing config: %w", err)
	}
	if err := holder.Initialize(); err != nil {
		return nil, fmt.Errorf("driver: signing config: %w", err)
	}

	identifier := identify.NewFirstID[*xmlpayload.Element](identify.DefaultPlaceholder)
	observe := func(d time.Duration) { metrics.SigningDuration.Observe(d.Seconds()) }
	return signing.NewExecStage[*xmlpayload.Element]("stage.signing.metadata-aggregator", holder, identifier, observe), nil
}

func shaVariant(v string) signing.ShaVariant {
	switch v {
	case "sha384":
		return signing.SHA384
	case "sha512":
		return signing.SHA512
	default:
		return signing.SHA256
	}
}

// loadKeyPair reads a PEM-encoded PKCS#1 or PKCS#8 RSA private key and a
// PEM-encoded X.509 certificate from disk.
func loadKeyPair(keyFile, certFile string) (*rsa.PrivateKey, *x509.Certificate, error) {
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read key file: %w", err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("key file %s: no PEM block found", keyFile)
	}
	key, err := parseRSAKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("key file %s: %w", keyFile, err)
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read cert file: %w", err)
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, nil, fmt.Errorf("cert file %s: no PEM block found", certFile)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("cert file %s: %w", certFile, err)
	}

	return key, cert, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

func kafkaAuthMechanism(v string) kafkadest.AuthMechanism {
	switch v {
	case "scram-sha-256":
		return kafkadest.AuthSCRAMSHA256
	case "scram-sha-512":
		return kafkadest.AuthSCRAMSHA512
	case "plain":
		return kafkadest.AuthPlain
	default:
		return kafkadest.AuthNone
	}
}

// Run loads items from sourceDir, runs them through the pipeline, records
// the outcome in the run registry, and returns the surviving items.
func (a *Aggregator) Run(ctx context.Context, sourceDir string) ([]*meta.Item[*xmlpayload.Element], error) {
	runID := uuid.NewString()
	status := admin.RunStatus{ID: runID, Pipeline: a.pipeline.ID(), StartedAt: time.Now()}

	items, err := source.LoadDir(sourceDir)
	if err != nil {
		status.Err = err.Error()
		a.runs.Record(status)
		return nil, err
	}

	if err := a.pipeline.Initialize(); err != nil {
		status.Err = err.Error()
		a.runs.Record(status)
		return nil, fmt.Errorf("driver: initialize pipeline: %w", err)
	}
	defer a.pipeline.Destroy()

	var finding *resourcemon.Finding
	var out []*meta.Item[*xmlpayload.Element]
	if a.cfg.ResourceMonitor.Enabled {
		thresholds := resourcemon.DefaultThresholds()
		thresholds.GoroutineGrowth = a.cfg.ResourceMonitor.GoroutineGrowth
		thresholds.RSSGrowthBytes = a.cfg.ResourceMonitor.RSSGrowthBytes

		finding, err = resourcemon.Around(ctx, thresholds, func(ctx context.Context) error {
			out, err = a.pipeline.Execute(ctx, items)
			return err
		})
	} else {
		out, err = a.pipeline.Execute(ctx, items)
	}

	status.CompletedAt = time.Now()
	status.ItemCount = len(out)
	status.Finding = finding
	outcome := "success"
	if err != nil {
		status.Err = err.Error()
		outcome = "failure"
	}
	a.runs.Record(status)
	metrics.PipelineRunsTotal.WithLabelValues(a.pipeline.ID(), outcome).Inc()

	if finding != nil {
		metrics.ResourceMonitorFindingsTotal.WithLabelValues(a.pipeline.ID(), finding.Kind).Inc()
		a.logger.WithFields(logrus.Fields{"run_id": runID, "finding": finding}).Warn("resource monitor flagged this run")
	}
	if err != nil {
		return nil, fmt.Errorf("driver: run %s: %w", runID, err)
	}
	return out, nil
}

// AdminServer returns the admin HTTP server, or nil when cfg.Admin.Enabled
// is false.
func (a *Aggregator) AdminServer() *admin.Server { return a.admin }

// Shutdown releases the tracer provider and (if running) the admin
// server.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			return fmt.Errorf("driver: close kafka producer: %w", err)
		}
	}
	return a.tracer.Shutdown(ctx)
}
