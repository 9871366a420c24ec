// Command blockset-bulkload loads a zip-code gazetteer CSV file into a
// blocked sequence set file, insert-by-insert, and reports throughput and
// final structural statistics. It is the entry point for populating a file
// from scratch or growing an existing one.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/blockset/pkg/blockfile"
	"github.com/dd0wney/blockset/pkg/logging"
	"github.com/dd0wney/blockset/pkg/metrics"
	"github.com/dd0wney/blockset/pkg/record/zipcode"
	"github.com/dd0wney/blockset/pkg/validation"
)

// FileConfig is the on-disk shape of the blocked sequence set file itself:
// block geometry and duplicate/flush policy. It is kept separate from the
// loader's own flags (source CSV, batch size) since it describes the file,
// not one particular run of this tool.
type FileConfig struct {
	Path            string `yaml:"path"`
	IndexPath       string `yaml:"index_path"`
	BlockSize       uint32 `yaml:"block_size"`
	MinBlockSize    uint16 `yaml:"min_block_size"`
	AllowDuplicates bool   `yaml:"allow_duplicates"`
	FlushOnMutation bool   `yaml:"flush_on_mutation"`
}

func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *FileConfig) validate() error {
	return validation.NewConfigValidator("FileConfig").
		Required("path", c.Path).
		MinInt("block_size", int(c.BlockSize), 64).
		MinInt("min_block_size", int(c.MinBlockSize), 16).
		Custom("min_block_size", func() error {
			if int(c.MinBlockSize)*2 > int(c.BlockSize) {
				return fmt.Errorf("min_block_size (%d) must not exceed half of block_size (%d)", c.MinBlockSize, c.BlockSize)
			}
			return nil
		}).
		Validate()
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML file config (path, block_size, min_block_size, ...)")
	dataFile := flag.String("data", "", "Path to a zip-code gazetteer CSV file")
	batchSize := flag.Int("batch", 5000, "Number of records between progress log lines")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(*logLevel))

	if *configPath == "" || *dataFile == "" {
		fmt.Println("Usage: blockset-bulkload --config file.yaml --data gazetteer.csv [--batch 5000] [--log-level info]")
		os.Exit(1)
	}

	fileCfg, err := loadFileConfig(*configPath)
	if err != nil {
		log.Error("failed to load file config", logging.Error(err), logging.Path(*configPath))
		os.Exit(1)
	}
	if err := fileCfg.validate(); err != nil {
		log.Error("invalid file config", logging.Error(err))
		os.Exit(1)
	}

	reg := metrics.NewRegistry()

	engine, err := blockfile.Open(blockfile.Config{
		Path:            fileCfg.Path,
		IndexPath:       fileCfg.IndexPath,
		BlockSize:       fileCfg.BlockSize,
		MinBlockSize:    fileCfg.MinBlockSize,
		Fields:          zipcode.Schema(),
		PrimaryKeyField: 0,
		SchemaInfo:      "zipcode-gazetteer-v1",
		AllowDuplicates: fileCfg.AllowDuplicates,
		FlushOnMutation: fileCfg.FlushOnMutation,
		Codec:           zipcode.Codec{},
		Logger:          log,
		Metric:          reg,
	})
	if err != nil {
		log.Error("failed to open blocked sequence set", logging.Error(err), logging.Path(fileCfg.Path))
		os.Exit(1)
	}
	defer engine.Close()

	log.Info("opened blocked sequence set", logging.Path(fileCfg.Path), logging.Count(int(engine.RecordCount())))

	timer := logging.StartTimer(log, "bulk load", logging.Path(*dataFile))
	inserted, skipped, err := loadFile(engine, *dataFile, *batchSize, log)
	if err != nil {
		timer.EndError(err)
		os.Exit(1)
	}
	timer.End()

	log.Info("bulk load complete",
		logging.Count(inserted),
		logging.Int("skipped", skipped),
		logging.Count(int(engine.RecordCount())),
		logging.Int("blocks", int(engine.BlockCount())),
	)
}

// loadFile reads line-oriented CSV records from path and inserts each one,
// logging progress every batchSize records and tolerating malformed lines
// and duplicate keys by counting them as skipped rather than aborting the
// whole load.
func loadFile(engine *blockfile.Engine, path string, batchSize int, log logging.Logger) (inserted, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	start := time.Now()
	scanner := bufio.NewScanner(f)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, parseErr := zipcode.ParseCSVRecord(line)
		if parseErr != nil {
			log.Warn("skipping malformed line", logging.Int("line", lineNo), logging.Error(parseErr))
			skipped++
			continue
		}

		if insertErr := engine.Insert(rec); insertErr != nil {
			if ee, ok := insertErr.(*blockfile.EngineError); ok && ee.Kind == blockfile.KindDuplicate {
				skipped++
				continue
			}
			return inserted, skipped, fmt.Errorf("inserting zip %d at line %d: %w", rec.ZipCode, lineNo, insertErr)
		}
		inserted++

		if inserted%batchSize == 0 {
			elapsed := time.Since(start)
			log.Info("progress",
				logging.Count(inserted),
				logging.Int("skipped", skipped),
				logging.Duration("elapsed", elapsed),
				logging.Int("records_per_sec", int(float64(inserted)/elapsed.Seconds())),
			)
		}
	}
	if err := scanner.Err(); err != nil {
		return inserted, skipped, fmt.Errorf("reading %s: %w", path, err)
	}

	return inserted, skipped, nil
}
