package ownmapdal

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapimg"
	"github.com/jamesrr39/ownmap-compiler/ownmapsplit"
	"github.com/spf13/viper"
)

// Option keys, as used in options files and on the command line
const (
	OptionMapName                = "map-name"
	OptionDescription            = "description"
	OptionOutputDir              = "output-dir"
	OptionBlockSize              = "block-size"
	OptionCharset                = "charset"
	OptionLowerCase              = "lower-case"
	OptionRoute                  = "route"
	OptionMaxFeatures            = "max-features"
	OptionSplitX                 = "split-x"
	OptionSplitY                 = "split-y"
	OptionMaxDepth               = "max-depth"
	OptionMinCellSize            = "min-cell-size"
	OptionLabelLimit             = "label-limit"
	OptionMaxZoomLevel           = "max-zoom-level"
	OptionWorkers                = "workers"
	OptionKeepWorkDir            = "keep-work-dir"
	OptionIgnoreOSMBounds        = "ignore-osm-bounds"
	OptionIgnoreTurnRestrictions = "ignore-turn-restrictions"
)

type CompileOptions struct {
	MapName     string `mapstructure:"map-name" validate:"required,len=8,numeric"`
	Description string `mapstructure:"description" validate:"max=50"`
	OutputDir   string `mapstructure:"output-dir" validate:"required"`
	// BlockSize is the alignment of tile data in the map file
	BlockSize   int    `mapstructure:"block-size" validate:"min=512,max=65536"`
	Charset     string `mapstructure:"charset" validate:"required"`
	LowerCase   bool   `mapstructure:"lower-case"`
	Route       bool   `mapstructure:"route"`
	MaxFeatures int    `mapstructure:"max-features" validate:"min=1"`
	SplitX      int    `mapstructure:"split-x" validate:"min=1,max=16"`
	SplitY      int    `mapstructure:"split-y" validate:"min=1,max=16"`
	MaxDepth    int    `mapstructure:"max-depth" validate:"min=0,max=64"`
	MinCellSize int32  `mapstructure:"min-cell-size" validate:"min=1"`
	LabelLimit  int    `mapstructure:"label-limit" validate:"min=1,max=4"`

	MaxZoomLevel ownmap.ZoomLevel `mapstructure:"max-zoom-level" validate:"max=8"`
	Workers      int              `mapstructure:"workers" validate:"min=1"`
	KeepWorkDir  bool             `mapstructure:"keep-work-dir"`

	IgnoreOSMBounds        bool `mapstructure:"ignore-osm-bounds"`
	IgnoreTurnRestrictions bool `mapstructure:"ignore-turn-restrictions"`
}

func DefaultCompileOptions() CompileOptions {
	splitOpts := ownmapsplit.DefaultSplitOptions()
	encoderOpts := ownmapimg.DefaultEncoderOptions()

	return CompileOptions{
		MapName:      "63240001",
		OutputDir:    ".",
		BlockSize:    512,
		Charset:      encoderOpts.Charset,
		Route:        encoderOpts.Route,
		MaxFeatures:  splitOpts.MaxFeatures,
		SplitX:       splitOpts.SplitX,
		SplitY:       splitOpts.SplitY,
		MaxDepth:     splitOpts.MaxDepth,
		MinCellSize:  splitOpts.MinCellSize,
		LabelLimit:   encoderOpts.LabelLimit,
		MaxZoomLevel: encoderOpts.MaxZoomLevel,
		Workers:      runtime.NumCPU(),
	}
}

func (o CompileOptions) toMap() map[string]interface{} {
	return map[string]interface{}{
		OptionMapName:                o.MapName,
		OptionDescription:            o.Description,
		OptionOutputDir:              o.OutputDir,
		OptionBlockSize:              o.BlockSize,
		OptionCharset:                o.Charset,
		OptionLowerCase:              o.LowerCase,
		OptionRoute:                  o.Route,
		OptionMaxFeatures:            o.MaxFeatures,
		OptionSplitX:                 o.SplitX,
		OptionSplitY:                 o.SplitY,
		OptionMaxDepth:               o.MaxDepth,
		OptionMinCellSize:            o.MinCellSize,
		OptionLabelLimit:             o.LabelLimit,
		OptionMaxZoomLevel:           o.MaxZoomLevel,
		OptionWorkers:                o.Workers,
		OptionKeepWorkDir:            o.KeepWorkDir,
		OptionIgnoreOSMBounds:        o.IgnoreOSMBounds,
		OptionIgnoreTurnRestrictions: o.IgnoreTurnRestrictions,
	}
}

// LoadCompileOptions builds the options from the defaults, then the options file (if configReader is not nil),
// then overrides. The result is validated.
func LoadCompileOptions(configReader io.Reader, configType string, overrides map[string]interface{}) (CompileOptions, errorsx.Error) {
	v := viper.New()
	for key, value := range DefaultCompileOptions().toMap() {
		v.SetDefault(key, value)
	}

	if configReader != nil {
		v.SetConfigType(configType)
		err := v.ReadConfig(configReader)
		if err != nil {
			return CompileOptions{}, errorsx.Wrap(err, "configType", configType)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var opts CompileOptions
	err := v.Unmarshal(&opts)
	if err != nil {
		return CompileOptions{}, errorsx.Wrap(err)
	}

	validationErr := opts.Validate()
	if validationErr != nil {
		return CompileOptions{}, errorsx.Wrap(validationErr)
	}

	return opts, nil
}

// LoadCompileOptionsFile reads an options file. The file type (yaml, json, toml, properties...) comes from its extension.
func LoadCompileOptionsFile(fs gofs.Fs, path string, overrides map[string]interface{}) (CompileOptions, errorsx.Error) {
	file, err := fs.Open(path)
	if err != nil {
		return CompileOptions{}, errorsx.Wrap(err, "path", path)
	}
	defer file.Close()

	configType := strings.TrimPrefix(filepath.Ext(path), ".")
	opts, loadErr := LoadCompileOptions(file, configType, overrides)
	if loadErr != nil {
		return CompileOptions{}, errorsx.Wrap(loadErr, "path", path)
	}

	return opts, nil
}

func (o CompileOptions) Validate() errorsx.Error {
	err := validator.New().Struct(o)
	if err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errorsx.Wrap(err)
		}

		var messages []string
		for _, fieldErr := range validationErrs {
			messages = append(messages, fmt.Sprintf("%s failed on %q (value: %v)", fieldErr.Field(), fieldErr.Tag(), fieldErr.Value()))
		}
		return errorsx.Errorf("invalid options: %s", strings.Join(messages, ", "))
	}

	if o.BlockSize&(o.BlockSize-1) != 0 {
		return errorsx.Errorf("block size must be a power of 2, but was %d", o.BlockSize)
	}

	validationErr := o.SplitOptions().Validate()
	if validationErr != nil {
		return errorsx.Wrap(validationErr)
	}

	validationErr = o.EncoderOptions().Validate()
	if validationErr != nil {
		return errorsx.Wrap(validationErr)
	}

	return nil
}

func (o CompileOptions) SplitOptions() ownmapsplit.SplitOptions {
	return ownmapsplit.SplitOptions{
		MaxFeatures: o.MaxFeatures,
		SplitX:      o.SplitX,
		SplitY:      o.SplitY,
		MaxDepth:    o.MaxDepth,
		MinCellSize: o.MinCellSize,
	}
}

func (o CompileOptions) EncoderOptions() ownmapimg.EncoderOptions {
	return ownmapimg.EncoderOptions{
		LabelLimit:   o.LabelLimit,
		MaxZoomLevel: o.MaxZoomLevel,
		Route:        o.Route,
		Charset:      o.Charset,
		ForceUpper:   !o.LowerCase,
	}
}

func (o CompileOptions) ConvertOptions() ConvertOptions {
	return ConvertOptions{
		IgnoreOSMBounds:        o.IgnoreOSMBounds,
		IgnoreTurnRestrictions: o.IgnoreTurnRestrictions,
	}
}

// MapFilePath is where the compiled map is written
func (o CompileOptions) MapFilePath() string {
	return filepath.Join(o.OutputDir, o.MapName+".img")
}
