package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/internal/app/service"
	"github.com/carpore/carpore-backend/internal/catalogsheet"
	"github.com/carpore/carpore-backend/internal/db"
)

const usage = `Usage:
  seed [-overwrite]            seed the launch catalog
  seed import [-y] <file.xlsx> import fragrances from a sheet
  seed export <file.xlsx>      write the current catalog to a sheet
  seed template <file.xlsx>    write the launch catalog as a starting sheet`

func main() {
	if len(os.Args) > 1 && strings.HasPrefix(os.Args[1], "-h") {
		fmt.Println(usage)
		return
	}

	command := "catalog"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	// template needs no database
	if command == "template" {
		path := sheetPath(command, args)
		if err := writeSheet(path, db.DefaultCatalog()); err != nil {
			log.Fatal("Failed to write template:", err)
		}
		fmt.Printf("Template written to %s\n", path)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	ctx := context.Background()
	repo := repository.NewCatalogRepository(db.GetDB())

	switch command {
	case "catalog":
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		overwrite := fs.Bool("overwrite", false, "replace existing categories and fragrances")
		_ = fs.Parse(args)

		if err := db.SeedCatalog(db.GetDB(), db.DefaultCatalog(), *overwrite); err != nil {
			log.Fatal("Failed to seed catalog:", err)
		}
		fmt.Println("Catalog seeded.")

	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		yes := fs.Bool("y", false, "import without asking")
		_ = fs.Parse(args)
		importSheet(ctx, service.NewCatalogService(repo, nil), sheetPath(command, fs.Args()), *yes)

	case "export":
		categories, err := repo.ListCategories(ctx)
		if err != nil {
			log.Fatal("Failed to load catalog:", err)
		}
		path := sheetPath(command, args)
		if err := writeSheet(path, categories); err != nil {
			log.Fatal("Failed to write sheet:", err)
		}
		fmt.Printf("Exported %d categories to %s\n", len(categories), path)

	default:
		fmt.Println(usage)
		os.Exit(2)
	}
}

func sheetPath(command string, args []string) string {
	if len(args) < 1 {
		log.Fatalf("%s needs a file path\n\n%s", command, usage)
	}
	return args[0]
}

func importSheet(ctx context.Context, catalog service.CatalogService, path string, yes bool) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatal("Failed to open sheet:", err)
	}
	defer f.Close()

	fmt.Printf("Reading XLSX file: %s\n", path)
	fragrances, rowErrs, err := catalogsheet.Read(f)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	for _, re := range rowErrs {
		fmt.Printf("  skipped row %d: %s\n", re.Row, re.Reason)
	}
	fmt.Printf("Total fragrances to import: %d\n", len(fragrances))
	if len(fragrances) == 0 {
		return
	}

	if !yes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	imported, err := catalog.ImportFragrances(ctx, fragrances)
	if err != nil {
		log.Fatalf("Import stopped after %d fragrances: %v", imported, err)
	}
	fmt.Printf("Imported %d fragrances, skipped %d\n", imported, len(fragrances)-imported+len(rowErrs))
}

func writeSheet(path string, categories []model.Category) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := catalogsheet.Write(f, categories); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
