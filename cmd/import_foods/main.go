package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ledongthuc/pdf"
	"gorm.io/gorm"

	"dietboard/internal/catalog"
	"dietboard/internal/config"
	"dietboard/internal/db"
	"dietboard/models"
)

// foodRecord is one parsed source row: a food with its measured amounts per
// 100 grams keyed by nutrient slug.
type foodRecord struct {
	Name         string
	PricePer100g *float64
	Amounts      map[string]float64
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: import_foods <file.csv|file.pdf>")
		os.Exit(1)
	}

	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("source path must not be empty")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("locate source: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(database); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	var records []foodRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		records, err = readPDF(path)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	nutrients, err := catalog.LoadNutrients(context.Background(), database)
	if err != nil {
		return fmt.Errorf("load nutrient catalog: %w", err)
	}

	imported := 0
	skippedFacts := 0
	for idx, record := range records {
		if err := database.Transaction(func(tx *gorm.DB) error {
			skipped, err := upsertFood(tx, nutrients, record)
			skippedFacts += skipped
			return err
		}); err != nil {
			return fmt.Errorf("record %d (%s): %w", idx+1, record.Name, err)
		}
		imported++
	}

	fmt.Fprintf(os.Stdout, "Imported %d foods from %s", imported, filepath.Base(path))
	if skippedFacts > 0 {
		fmt.Fprintf(os.Stdout, " (%d facts skipped: unknown nutrient)", skippedFacts)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}

// upsertFood matches foods by folded name, refreshes name and price, and
// replaces the food's amount facts with the parsed set. It returns the number
// of facts dropped for unknown nutrient keys.
func upsertFood(tx *gorm.DB, nutrients *catalog.NutrientCatalog, record foodRecord) (int, error) {
	folded := catalog.FoldName(record.Name)
	if folded == "" {
		return 0, fmt.Errorf("food name %q folds to nothing", record.Name)
	}

	var food models.Food
	err := tx.Where("folded_name = ?", folded).First(&food).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"name":           record.Name,
			"price_per_100g": record.PricePer100g,
		}
		if err := tx.Model(&food).Updates(updates).Error; err != nil {
			return 0, fmt.Errorf("update food: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		food = models.Food{
			Name:         record.Name,
			FoldedName:   folded,
			PricePer100g: record.PricePer100g,
		}
		if err := tx.Create(&food).Error; err != nil {
			return 0, fmt.Errorf("create food: %w", err)
		}
	default:
		return 0, fmt.Errorf("find food: %w", err)
	}

	// Hard delete: soft-deleted rows would still occupy the unique index.
	if err := tx.Unscoped().Where("food_id = ?", food.ID).Delete(&models.FoodNutrient{}).Error; err != nil {
		return 0, fmt.Errorf("clear facts: %w", err)
	}

	skipped := 0
	for key, amount := range record.Amounts {
		nutrient, ok := nutrients.ByKey(key)
		if !ok {
			skipped++
			continue
		}
		fact := models.FoodNutrient{
			FoodID:        food.ID,
			NutrientID:    nutrient.ID,
			AmountPer100g: amount,
		}
		if err := tx.Create(&fact).Error; err != nil {
			return skipped, fmt.Errorf("create fact %s: %w", key, err)
		}
	}
	return skipped, nil
}

// readCSV parses a header-driven table: a Name column, an optional price
// column, and one column per nutrient key holding amounts per 100 grams.
// Blank amount cells mean the fact is unmeasured and produce no row.
func readCSV(path string) ([]foodRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("csv is empty")
	}

	header := make([]string, len(rows[0]))
	for idx, key := range rows[0] {
		header[idx] = normalizeHeader(key)
	}

	records := make([]foodRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}

		record := foodRecord{Amounts: make(map[string]float64)}
		for idx, key := range header {
			if idx >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[idx])
			switch key {
			case "name", "food", "food_name":
				record.Name = value
			case "price", "price_per_100g":
				if parsed, err := strconv.ParseFloat(value, 64); err == nil {
					record.PricePer100g = &parsed
				}
			default:
				if value == "" {
					continue
				}
				parsed, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("row %q: bad amount %q for %s", record.Name, value, key)
				}
				record.Amounts[key] = parsed
			}
		}

		if strings.TrimSpace(record.Name) == "" {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// readPDF extracts the document's plain text and parses semicolon-delimited
// lines of the form "Name; price; key=amount; key=amount".
func readPDF(path string) ([]foodRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := extractTextFromPDF(data)
	if err != nil {
		return nil, err
	}
	return parsePDFLines(text)
}

func extractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func parsePDFLines(text string) ([]foodRecord, error) {
	var records []foodRecord
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, ";") {
			continue
		}

		parts := strings.Split(line, ";")
		record := foodRecord{
			Name:    strings.TrimSpace(parts[0]),
			Amounts: make(map[string]float64),
		}
		if record.Name == "" {
			continue
		}

		for _, part := range parts[1:] {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if key, value, ok := strings.Cut(part, "="); ok {
				amount, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
				if err != nil {
					return nil, fmt.Errorf("line %q: bad amount %q", line, value)
				}
				record.Amounts[normalizeHeader(key)] = amount
				continue
			}
			if price, err := strconv.ParseFloat(part, 64); err == nil {
				record.PricePer100g = &price
			}
		}

		records = append(records, record)
	}
	return records, nil
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "_")
	return value
}
