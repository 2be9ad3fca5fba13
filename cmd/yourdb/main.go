// Command yourdb is a small operational harness around the embedded store:
// it opens (creating if absent) a database directory, and can create an
// entity, insert a record from flags, list the live set, or trigger a
// manual compaction. It exists to exercise the library end-to-end from the
// command line, not as a long-running server — yourdb is an embedded store
// linked into a host process, the way the teacher's arkilian binary fronts
// its own ingest/query/compact services.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/yourdb-org/yourdb/internal/catalog"
	"github.com/yourdb-org/yourdb/internal/config"
	"github.com/yourdb-org/yourdb/pkg/record"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		entityName  string
		createFlag  bool
		insertID    int64
		insertName  string
		selectFlag  bool
		optimize    bool
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Database directory")
	flag.StringVar(&entityName, "entity", "items", "Entity name to operate on")
	flag.BoolVar(&createFlag, "create", false, "Create the entity if it does not exist")
	flag.Int64Var(&insertID, "insert-id", 0, "Primary key of a record to insert (0 skips insert)")
	flag.StringVar(&insertName, "insert-name", "", "Name field of the record to insert")
	flag.BoolVar(&selectFlag, "select", false, "Print the entity's live set")
	flag.BoolVar(&optimize, "optimize", false, "Run one compaction cycle before exiting")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "yourdb - an embedded, schema-validated object store\n\n")
		fmt.Fprintf(os.Stderr, "Usage: yourdb [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  YOURDB_DATA_DIR                   Database directory\n")
		fmt.Fprintf(os.Stderr, "  YOURDB_COMPACTION_TRIGGER_RATIO   Compaction trigger live/frame ratio (loaded, not acted on by this harness)\n")
		fmt.Fprintf(os.Stderr, "  YOURDB_COMPACTION_MIN_FRAMES      Minimum frames before the ratio check applies\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("yourdb version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, dataDir)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("failed to prepare data directory: %v", err)
	}

	cat, err := catalog.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open catalog: %v", err)
	}
	defer cat.Close()

	schema := demoSchema(entityName)

	if createFlag {
		if err := cat.CreateEntity(entityName, schema); err != nil {
			log.Printf("create entity %s: %v", entityName, err)
		} else {
			log.Printf("created entity %s", entityName)
		}
	}

	e, err := cat.OpenEntity(entityName, schema)
	if err != nil {
		log.Fatalf("failed to open entity %s: %v", entityName, err)
	}
	defer e.Close()

	if insertID != 0 {
		rec := record.New()
		rec.Set("id", record.IntValue(insertID))
		rec.Set("name", record.StringValue(insertName))
		if err := e.Insert(rec); err != nil {
			log.Printf("insert id=%d: %v", insertID, err)
		} else {
			log.Printf("inserted id=%d", insertID)
		}
	}

	if selectFlag {
		recs, err := e.Select(nil)
		if err != nil {
			log.Fatalf("select: %v", err)
		}
		for _, r := range recs {
			id, _ := r.Get("id")
			name, _ := r.Get("name")
			fmt.Printf("%v\t%v\n", id, name)
		}
		fmt.Printf("(%d live records)\n", len(recs))
	}

	if optimize {
		if err := e.Optimize(); err != nil {
			log.Fatalf("optimize: %v", err)
		}
		log.Printf("compaction complete")
	}
}

func demoSchema(name string) *record.Schema {
	s, err := record.NewSchema(name, "id", map[string]record.Kind{
		"id":   record.KindInt,
		"name": record.KindString,
	}, []string{"name"})
	if err != nil {
		log.Fatalf("demo schema: %v", err)
	}
	return s
}

func loadConfig(configFile, dataDir string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
