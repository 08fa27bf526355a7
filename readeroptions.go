package zipcore

import "github.com/sirupsen/logrus"

// readerConfig holds the options shared by every reader modality
// (SeekableReader, MemoryReader, StreamReader).
type readerConfig struct {
	codecs *CodecRegistry
	log    *logrus.Entry
}

func newReaderConfig() readerConfig {
	return readerConfig{codecs: DefaultCodecRegistry()}
}

func (c *readerConfig) ensureDefaults() {
	if c.codecs == nil {
		c.codecs = DefaultCodecRegistry()
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
}

// ReaderOption configures a reader modality's codec registry and logger.
type ReaderOption func(*readerConfig)

// WithCodecRegistry overrides the default codec registry (spec §6.2
// "Domain stack").
func WithCodecRegistry(c *CodecRegistry) ReaderOption {
	return func(cfg *readerConfig) { cfg.codecs = c }
}

// WithLogger attaches a logrus entry used for archive-lifecycle events
// (spec §6.1 "Observability"). When omitted, logrus.StandardLogger() is
// used.
func WithLogger(log *logrus.Entry) ReaderOption {
	return func(cfg *readerConfig) { cfg.log = log }
}
