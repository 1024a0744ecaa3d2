package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cvquest/internal/catalog"
	"cvquest/internal/config"
	"cvquest/internal/database"
	"cvquest/internal/logger"
	"cvquest/internal/repository"
	"cvquest/internal/service"
	"cvquest/internal/storage"
	"cvquest/internal/validation"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	originsCmd := flag.NewFlagSet("origins", flag.ExitOnError)

	exportOrigin := exportCmd.String("origin", "", "Origin (browser) to export from (required)")
	exportStudent := exportCmd.String("student", "", "Student id (default: the origin's stored student)")
	exportOutput := exportCmd.String("output", "", "Output file path (default: progress_<student>_YYYYMMDD_HHMMSS.jwt)")

	importOrigin := importCmd.String("origin", "", "Origin (browser) to import into (required)")
	importStudent := importCmd.String("student", "", "Student id the bundle must belong to (required)")
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear the origin before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if _, err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			log.Fatal("Failed to load catalog", "error", err)
		}
	}
	repo := repository.NewOriginRepository(db)

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		requireFlag(exportCmd, "origin", *exportOrigin)
		handleExport(repo, cat, cfg, log, *exportOrigin, *exportStudent, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		requireFlag(importCmd, "origin", *importOrigin)
		requireFlag(importCmd, "student", *importStudent)
		requireFlag(importCmd, "input", *importInput)
		handleImport(repo, cat, cfg, log, *importOrigin, *importStudent, *importInput, *importClear)

	case "origins":
		originsCmd.Parse(os.Args[2:])
		origins, err := repo.Origins()
		if err != nil {
			log.Fatal("Failed to list origins", "error", err)
		}
		for _, origin := range origins {
			fmt.Println(origin)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func requireFlag(fs *flag.FlagSet, name, value string) {
	if value == "" {
		fmt.Printf("Error: -%s flag is required\n", name)
		fs.PrintDefaults()
		os.Exit(1)
	}
}

func handleExport(repo *repository.OriginRepository, cat *catalog.Catalog, cfg *config.Config, log *logger.Logger, origin, studentID, outputPath string) {
	store := repo.For(origin)
	if studentID == "" {
		stored, ok, err := store.Get(storage.KeyStudentID)
		if err != nil {
			log.Fatal("Failed to read stored student", "origin", origin, "error", err)
		}
		if !ok {
			log.Fatal("Origin has no stored student, pass -student", "origin", origin)
		}
		studentID = stored
	}
	if err := validation.ValidateStudentID(studentID); err != nil {
		log.Fatal("Invalid student id", "error", err)
	}

	if outputPath == "" {
		outputPath = fmt.Sprintf("progress_%s_%s.jwt", studentID, time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("Failed to create output directory", "error", err)
		}
	}

	backup, err := service.NewBackupService(store, cat, cfg.ExportSecret, log)
	if err != nil {
		log.Fatal("Failed to create backup service", "error", err)
	}
	if err := backup.ExportToFile(studentID, outputPath); err != nil {
		log.Fatal("Export failed", "error", err)
	}
	log.Info("Export complete", "student_id", studentID, "output", outputPath)
}

func handleImport(repo *repository.OriginRepository, cat *catalog.Catalog, cfg *config.Config, log *logger.Logger, origin, studentID, inputPath string, clearData bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatal("Input file does not exist", "input", inputPath)
	}

	if clearData {
		fmt.Printf("WARNING: This will delete everything stored for %s. Type 'yes' to confirm: ", origin)
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Info("Import cancelled")
			return
		}
		if err := repo.ReplaceAll(origin, map[string]string{storage.KeyStudentID: studentID}); err != nil {
			log.Fatal("Failed to clear origin", "origin", origin, "error", err)
		}
		log.Info("Cleared origin", "origin", origin)
	}

	store := repo.For(origin)
	backup, err := service.NewBackupService(store, cat, cfg.ExportSecret, log)
	if err != nil {
		log.Fatal("Failed to create backup service", "error", err)
	}
	snapshot, err := backup.ImportFile(studentID, inputPath)
	if err != nil {
		log.Fatal("Import failed", "error", err)
	}
	log.Info("Import complete", "student_id", studentID, "completed_games", len(snapshot.CompletedGames))
}

func printUsage() {
	fmt.Println("CV Quest Progress Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export a student's progress to a signed file")
	fmt.Println("  backup import [options]    Import a signed progress file")
	fmt.Println("  backup origins             List origins that hold stored progress")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -origin <origin>   Origin to export from (required)")
	fmt.Println("  -student <id>      Student id (default: the origin's stored student)")
	fmt.Println("  -output <file>     Output file path")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -origin <origin>   Origin to import into (required)")
	fmt.Println("  -student <id>      Student id the file must belong to (required)")
	fmt.Println("  -input <file>      Input file path (required)")
	fmt.Println("  -clear             Clear the origin before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./cvquest.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
	fmt.Println("  EXPORT_SECRET    Secret the export files are signed with")
}
