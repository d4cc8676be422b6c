// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the dcmstream configuration file.
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/c2h5oh/datasize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/radmedres/clmedview-sub000/channel"
	"github.com/radmedres/clmedview-sub000/dicom"
)

const (
	minBufferSize = 512 * datasize.B
	maxBufferSize = 64 * datasize.MB
	maxLadder     = 1024
)

// Config is the file format:
//
//	log_level = "info"
//
//	[channel]
//	buffer_size = "64KB"
//
//	[reader]
//	ladder_capacity = 32
//	deflate = false
//
//	[writer]
//	transfer_syntax = "1.2.840.10008.1.2.1"
//	drop_private = false
type Config struct {
	LogLevel string        `toml:"log_level"`
	Channel  ChannelConfig `toml:"channel"`
	Reader   ReaderConfig  `toml:"reader"`
	Writer   WriterConfig  `toml:"writer"`
}

// ChannelConfig sizes the channel buffers.
type ChannelConfig struct {
	BufferSize datasize.ByteSize `toml:"buffer_size"`
}

// ReaderConfig configures the stream reader.
type ReaderConfig struct {
	LadderCapacity int  `toml:"ladder_capacity"`
	Deflate        bool `toml:"deflate"`
}

// WriterConfig holds the transcode defaults.
type WriterConfig struct {
	TransferSyntax string `toml:"transfer_syntax"`
	DropPrivate    bool   `toml:"drop_private"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Channel:  ChannelConfig{BufferSize: datasize.ByteSize(channel.DefaultBufferSize)},
		Reader:   ReaderConfig{LadderCapacity: dicom.DefaultLadderCapacity},
		Writer:   WriterConfig{TransferSyntax: dicom.ExplicitVRLittleEndianUID},
	}
}

// Load reads path over the defaults. Keys the file sets but Config does not know are an
// error, as are values Validate rejects.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "loading %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.Errorf("loading %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "loading %s", path)
	}
	return cfg, nil
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	if _, err := c.levelOption(); err != nil {
		return err
	}
	if c.Channel.BufferSize < minBufferSize || c.Channel.BufferSize > maxBufferSize {
		return errors.Errorf("channel.buffer_size %s outside [%s, %s]",
			c.Channel.BufferSize.HR(), minBufferSize.HR(), maxBufferSize.HR())
	}
	if c.Reader.LadderCapacity < 2 || c.Reader.LadderCapacity > maxLadder {
		return errors.Errorf("reader.ladder_capacity %d outside [2, %d]", c.Reader.LadderCapacity, maxLadder)
	}
	switch dicom.LookupTransferSyntax(c.Writer.TransferSyntax) {
	case dicom.ExplicitVRBigEndian:
		return errors.Wrapf(dicom.ErrBigEndian, "writer.transfer_syntax %s", c.Writer.TransferSyntax)
	case dicom.DeflatedExplicitVRLittleEndian:
		return errors.Wrapf(dicom.ErrDeflateUnsupported, "writer.transfer_syntax %s", c.Writer.TransferSyntax)
	}
	return nil
}

func (c Config) levelOption() (level.Option, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return level.AllowDebug(), nil
	case "info", "":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	}
	return nil, errors.Errorf("log_level %q is not one of debug, info, warn, error, none", c.LogLevel)
}

// Logger filters logger by the configured level.
func (c Config) Logger(logger log.Logger) log.Logger {
	opt, err := c.levelOption()
	if err != nil {
		opt = level.AllowInfo()
	}
	return level.NewFilter(logger, opt)
}

// ChannelOptions returns the options for the channels the command opens.
func (c Config) ChannelOptions(logger log.Logger, metrics *channel.Metrics) []channel.Option {
	opts := []channel.Option{
		channel.WithBufferSize(int(c.Channel.BufferSize.Bytes())),
		channel.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, channel.WithMetrics(metrics))
	}
	return opts
}

// ReaderOptions returns the options for Open, channel options included.
func (c Config) ReaderOptions(logger log.Logger, metrics *channel.Metrics) []dicom.Option {
	return []dicom.Option{
		dicom.WithLogger(logger),
		dicom.WithLadderCapacity(c.Reader.LadderCapacity),
		dicom.WithDeflate(c.Reader.Deflate),
		dicom.WithChannelOptions(c.ChannelOptions(logger, metrics)...),
	}
}

// WriterSyntax returns the transfer syntax transcode writes.
func (c Config) WriterSyntax() dicom.TransferSyntax {
	return dicom.LookupTransferSyntax(c.Writer.TransferSyntax)
}

// CopyOptions returns the filters transcode applies.
func (c Config) CopyOptions() []dicom.CopyOption {
	if c.Writer.DropPrivate {
		return []dicom.CopyOption{dicom.DropPrivateElements}
	}
	return nil
}
