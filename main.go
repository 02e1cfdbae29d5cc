package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kingpin/v2"

	"v8-tagdecoder-go/config"
	"v8-tagdecoder-go/memory/process"
	"v8-tagdecoder-go/memory/snapshot"
	"v8-tagdecoder-go/render"
	"v8-tagdecoder-go/v8/common"
	"v8-tagdecoder-go/v8/profile"
	"v8-tagdecoder-go/v8/tagged"
)

var (
	app = kingpin.New("v8tag", "Decode V8 tagged values: Smis, tagged HeapObject pointers and compressed pointers.")

	verbose     = app.Flag("verbose", "Print debug logging to stderr.").Short('v').Bool()
	configPath  = app.Flag("config", "Settings file.").Default(config.DefaultPath()).String()
	profileName = app.Flag("profile", "V8 version profile to use instead of the active_version setting.").String()
	format      = app.Flag("format", "Output format ('text', 'json' or 'cbor').").Default(render.FormatText).Enum(render.Formats...)
	noColor     = app.Flag("no-color", "Disable colored output.").Bool()
	pid         = app.Flag("pid", "Read memory from this live process (ptrace).").Int()
	snapshots   = app.Flag("snapshot", "Read memory from a dumped region, as BASE:PATH (hex base; .snappy/.sz/.zst are decompressed). Repeatable.").Strings()

	// check-value command
	checkCmd   = app.Command("check-value", "Interpret a value as a V8 Smi or a tagged HeapObject pointer.").Alias("cv")
	checkValue = checkCmd.Arg("value", "The value to interpret, e.g. 0xFFFFFFFFFFFFFFF0.").Required().String()
	checkWidth = checkCmd.Flag("width", "Pointer width in bytes.").Default("8").Enum("4", "8")

	// decompress command
	decompressCmd  = app.Command("decompress", "Decompress the 32-bit compressed pointer stored at an address.").Alias("dc")
	decompressAddr = decompressCmd.Arg("address", "Address where the 32-bit compressed pointer is stored.").Required().String()
	decompressCage = decompressCmd.Arg("cage_base", "Heap cage base address. Defaults to the main_cage_base setting.").String()

	// config command
	configCmd   = app.Command("config", "Show all settings, show one, or change one.")
	configName  = configCmd.Arg("name", "Setting name.").String()
	configValue = configCmd.Arg("value", "New value. An empty string resets the setting to its default.").Action(markConfigValueSet).String()

	// configValueSet tells "config NAME" (show) from "config NAME ''" (reset).
	configValueSet bool

	profilesCmd = app.Command("profiles", "List the known V8 version profiles.")
)

func main() {
	debug.SetTraceback("crash") // Enables full stack trace on panic
	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	config.InitLogger(*verbose)

	renderer := render.New(os.Stdout, *format, !*noColor && *format == render.FormatText)

	store, err := config.Open(*configPath)
	if err != nil {
		renderer.Error(os.Stderr, "Error loading settings", err)
		os.Exit(1)
	}

	switch command {
	case checkCmd.FullCommand():
		err = withSession(store, renderer, func(s *session) error {
			return runCheckValueCommand(s, *checkValue, *checkWidth)
		})
	case decompressCmd.FullCommand():
		err = withSession(store, renderer, func(s *session) error {
			return runDecompressCommand(s, *decompressAddr, *decompressCage)
		})
	case configCmd.FullCommand():
		err = runConfigCommand(store, renderer, *configName, *configValue, configValueSet)
	case profilesCmd.FullCommand():
		err = renderer.Profiles(profile.Builtin(), activeVersion(store))
	}
	if err != nil {
		renderer.Error(os.Stderr, "Error", err)
		os.Exit(1)
	}
}

// session is what the decoding commands need: the resolved layout and a
// memory source.
type session struct {
	layout   profile.Layout
	memory   common.MemoryReader
	renderer *render.Renderer
	store    config.Provider
}

func activeVersion(store config.Provider) string {
	if *profileName != "" {
		return *profileName
	}
	return config.ActiveVersion(store)
}

func withSession(store *config.Store, renderer *render.Renderer, fn func(*session) error) error {
	table := profile.Builtin()
	version := activeVersion(store)
	if !table.Has(version) {
		config.Log.Infof("no profile for V8 version %q, using %q", version, profile.DefaultVersion)
	}
	layout, err := table.Layout(table.Resolve(version))
	if err != nil {
		return err
	}

	memory, closeMemory, err := openMemory()
	if err != nil {
		return err
	}
	defer closeMemory()

	return fn(&session{layout: layout, memory: memory, renderer: renderer, store: store})
}

// openMemory picks the memory source from --pid / --snapshot.
func openMemory() (common.MemoryReader, func(), error) {
	if *pid != 0 && len(*snapshots) > 0 {
		return nil, nil, fmt.Errorf("--pid and --snapshot cannot be combined")
	}
	if *pid != 0 {
		fmt.Fprintf(os.Stderr, "🔎 Attaching to process %d\n", *pid)
		p, err := process.Attach(*pid)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	}
	if len(*snapshots) > 0 {
		var regions []*snapshot.Region
		for _, arg := range *snapshots {
			base, path, err := snapshot.ParseRegionArg(arg)
			if err != nil {
				return nil, nil, err
			}
			region, err := snapshot.Open(base, path)
			if err != nil {
				return nil, nil, err
			}
			regions = append(regions, region)
		}
		set, err := snapshot.NewSet(regions...)
		if err != nil {
			return nil, nil, err
		}
		return set, func() {}, nil
	}
	config.Log.Debugf("no memory source, heap object reads will fail")
	return common.NoMemory{}, func() {}, nil
}

func runCheckValueCommand(s *session, value, width string) error {
	w := common.Width64
	if width == "4" {
		w = common.Width32
	}
	raw, err := tagged.ParseWord(value, w)
	if err != nil {
		return err
	}
	in := tagged.NewInterpreter(s.layout, s.memory)
	v, err := in.Interpret(raw, w)
	if err != nil {
		return err
	}
	s.renderer.Note(s.layout)
	return s.renderer.Report(render.NewValueReport(s.layout, w, v))
}

func runDecompressCommand(s *session, address, cageBase string) error {
	fieldAddr, err := tagged.ParseWord(address, common.Width64)
	if err != nil {
		return err
	}
	var cage uint64
	if cageBase != "" {
		cage, err = tagged.ParseWord(cageBase, common.Width64)
	} else {
		cage, err = config.MainCageBase(s.store)
	}
	if err != nil {
		return err
	}
	if cage == 0 && cageBase == "" {
		fmt.Fprintf(os.Stderr, "Cage base is set to 0. Configure it with: v8tag config %s <hex_address>\n", config.MainCageBaseKey)
	}

	in := tagged.NewInterpreter(s.layout, s.memory)
	d, err := in.Decompress(fieldAddr, cage)
	if err != nil {
		return err
	}
	s.renderer.Note(s.layout)
	return s.renderer.Report(render.NewDecompressionReport(s.layout, d))
}

func markConfigValueSet(*kingpin.ParseContext) error {
	configValueSet = true
	return nil
}

func runConfigCommand(store *config.Store, renderer *render.Renderer, name, value string, setValue bool) error {
	switch {
	case name == "":
		return renderer.Settings(store.All())
	case !setValue:
		v, err := store.Get(name)
		if err != nil {
			return fmt.Errorf("unknown setting %q", name)
		}
		return renderer.Settings([][2]string{{name, v}})
	default:
		if err := store.Set(name, value); err != nil {
			if config.IsNotFound(err) {
				return fmt.Errorf("unknown setting %q", name)
			}
			return err
		}
		if value == "" {
			fmt.Fprintf(os.Stderr, "Reset %s to its default in %s\n", name, store.Path())
		} else {
			fmt.Fprintf(os.Stderr, "Set %s = %s in %s\n", name, value, store.Path())
		}
		return nil
	}
}
