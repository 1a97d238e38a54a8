package main

import (
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/alecthomas/kingpin/v2"
)

type optionFlag struct {
	key       string
	setByUser bool
	value     func() interface{}
}

// compileOptionFlags are the command line flags that override the options file.
// Only flags given on the command line are overrides; the rest come from the options file or the defaults.
type compileOptionFlags struct {
	flags []*optionFlag
}

func addCompileOptionFlags(cmd *kingpin.CmdClause) *compileOptionFlags {
	f := &compileOptionFlags{}

	f.addString(cmd, ownmapdal.OptionMapName, "8 digit map name. The map file is written to <output-dir>/<map-name>.img")
	f.addString(cmd, ownmapdal.OptionDescription, "description of the map, at most 50 characters")
	f.addString(cmd, ownmapdal.OptionOutputDir, "directory to write the map file to. Created if it doesn't exist")
	f.addInt(cmd, ownmapdal.OptionBlockSize, "alignment of tile data in the map file. A power of 2")
	f.addString(cmd, ownmapdal.OptionCharset, "charset of labels: ascii, latin1 or cpNNNN")
	f.addBool(cmd, ownmapdal.OptionLowerCase, "keep the case of labels, instead of upper casing them")
	f.addBool(cmd, ownmapdal.OptionRoute, "write routing sections")
	f.addInt(cmd, ownmapdal.OptionMaxFeatures, "maximum number of features in one tile")
	f.addInt(cmd, ownmapdal.OptionSplitX, "number of columns an area is split into")
	f.addInt(cmd, ownmapdal.OptionSplitY, "number of rows an area is split into")
	f.addInt(cmd, ownmapdal.OptionMaxDepth, "maximum number of times an area is split")
	f.addInt(cmd, ownmapdal.OptionMinCellSize, "minimum width and height of a tile, in map units")
	f.addInt(cmd, ownmapdal.OptionLabelLimit, "maximum number of labels per road")
	f.addInt(cmd, ownmapdal.OptionMaxZoomLevel, "most zoomed out level features are drawn at")
	f.addInt(cmd, ownmapdal.OptionWorkers, "number of tiles encoded in parallel")
	f.addBool(cmd, ownmapdal.OptionKeepWorkDir, "keep the working directory used during the compile (for debugging)")
	f.addBool(cmd, ownmapdal.OptionIgnoreOSMBounds, "compute the map bounds from the features, instead of the extract header")
	f.addBool(cmd, ownmapdal.OptionIgnoreTurnRestrictions, "don't read turn restrictions")

	return f
}

func (f *compileOptionFlags) add(key string) *optionFlag {
	flag := &optionFlag{key: key}
	f.flags = append(f.flags, flag)
	return flag
}

func (f *compileOptionFlags) addString(cmd *kingpin.CmdClause, key, help string) {
	flag := f.add(key)
	value := cmd.Flag(key, help).IsSetByUser(&flag.setByUser).String()
	flag.value = func() interface{} { return *value }
}

func (f *compileOptionFlags) addInt(cmd *kingpin.CmdClause, key, help string) {
	flag := f.add(key)
	value := cmd.Flag(key, help).IsSetByUser(&flag.setByUser).Int()
	flag.value = func() interface{} { return *value }
}

func (f *compileOptionFlags) addBool(cmd *kingpin.CmdClause, key, help string) {
	flag := f.add(key)
	value := cmd.Flag(key, help).IsSetByUser(&flag.setByUser).Bool()
	flag.value = func() interface{} { return *value }
}

func (f *compileOptionFlags) overrides() map[string]interface{} {
	overrides := make(map[string]interface{})
	for _, flag := range f.flags {
		if flag.setByUser {
			overrides[flag.key] = flag.value()
		}
	}
	return overrides
}
