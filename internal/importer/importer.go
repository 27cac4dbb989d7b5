// Package importer moves templates between the trading platform's XML
// template folders and the document store. Vendor files are upserted by
// template name; malformed files are logged and skipped, never fatal.
package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantdesk/template-backend/internal/store"
	"github.com/quantdesk/template-backend/pkg/types"
	"go.uber.org/zap"
)

// Subfolders of the platform template directory, one per family.
const (
	atmFolder   = "atm"
	flazhFolder = "flazh"
)

// conditionsXML is the shared market-conditions block of a vendor file.
// Missing elements stay empty and act as wildcards.
type conditionsXML struct {
	Session    string `xml:"Session"`
	Volatility string `xml:"Volatility"`
	DayOfWeek  string `xml:"DayOfWeek"`
	Trend      string `xml:"Trend"`
	Volume     string `xml:"Volume"`
}

// atmXML mirrors the platform's ATM strategy template document.
type atmXML struct {
	XMLName         xml.Name      `xml:"AtmStrategy"`
	Template        string        `xml:"Template"`
	StopLoss        int           `xml:"StopLoss"`
	ProfitTarget    int           `xml:"ProfitTarget"`
	TrailingStop    int           `xml:"TrailingStop"`
	BreakevenTicks  int           `xml:"BreakevenTicks"`
	CalculationMode string        `xml:"CalculationMode"`
	Brackets        []bracketXML  `xml:"Brackets>Bracket"`
	Conditions      conditionsXML `xml:"Conditions"`
}

type bracketXML struct {
	Quantity     int `xml:"Quantity"`
	StopLoss     int `xml:"StopLoss"`
	Target       int `xml:"Target"`
	TrailingStop int `xml:"TrailingStop"`
}

// flazhXML mirrors the platform's Flazh parameter document.
type flazhXML struct {
	XMLName          xml.Name      `xml:"FlazhTemplate"`
	Template         string        `xml:"Template"`
	FastPeriod       int           `xml:"FastPeriod"`
	MediumPeriod     int           `xml:"MediumPeriod"`
	SlowPeriod       int           `xml:"SlowPeriod"`
	FastRange        int           `xml:"FastRange"`
	MediumRange      int           `xml:"MediumRange"`
	SlowRange        int           `xml:"SlowRange"`
	FilterMultiplier float64       `xml:"FilterMultiplier"`
	StopLoss         int           `xml:"StopLoss"`
	Target           int           `xml:"Target"`
	TrailingStop     int           `xml:"TrailingStop"`
	Conditions       conditionsXML `xml:"Conditions"`
}

// Result summarizes an import run.
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer reads and writes platform template folders.
type Importer struct {
	logger *zap.Logger
	store  *store.Store
	dir    string
}

// New creates an importer rooted at the platform template directory.
func New(logger *zap.Logger, st *store.Store, dir string) *Importer {
	return &Importer{logger: logger, store: st, dir: dir}
}

// ImportAll scans both family folders and upserts every parseable template.
func (i *Importer) ImportAll(ctx context.Context) (*Result, error) {
	result := &Result{}

	folders := []struct {
		sub          string
		templateType types.TemplateType
	}{
		{atmFolder, types.TemplateTypeATM},
		{flazhFolder, types.TemplateTypeFlazh},
	}

	for _, f := range folders {
		dir := filepath.Join(i.dir, f.sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return result, fmt.Errorf("failed to read template folder %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".xml") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := i.importFile(ctx, path, f.templateType); err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
				i.logger.Warn("Skipping template file",
					zap.String("path", path), zap.Error(err))
				continue
			}
			result.Imported++
		}
	}

	i.logger.Info("Template import complete",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (i *Importer) importFile(ctx context.Context, path string, templateType types.TemplateType) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}

	var tmpl *types.Template
	switch templateType {
	case types.TemplateTypeATM:
		tmpl, err = ParseATM(data)
	case types.TemplateTypeFlazh:
		tmpl, err = ParseFlazh(data)
	default:
		return fmt.Errorf("unsupported template type %q", templateType)
	}
	if err != nil {
		return err
	}

	tmpl.Source = path
	return i.store.UpsertTemplate(ctx, tmpl)
}

// ParseATM decodes a vendor ATM strategy document.
func ParseATM(data []byte) (*types.Template, error) {
	var doc atmXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	if doc.Template == "" {
		return nil, fmt.Errorf("missing Template name element")
	}

	mode := types.CalculationMode(doc.CalculationMode)
	if mode != types.CalculationModePercent {
		mode = types.CalculationModeTicks
	}

	tmpl := &types.Template{
		Type:       types.TemplateTypeATM,
		Name:       doc.Template,
		Conditions: conditionsFromXML(doc.Conditions),
		ATM: &types.ATMParameters{
			StopLoss:        doc.StopLoss,
			Target:          doc.ProfitTarget,
			TrailingStop:    doc.TrailingStop,
			BreakevenTicks:  doc.BreakevenTicks,
			CalculationMode: mode,
		},
	}
	for _, b := range doc.Brackets {
		tmpl.ATM.Brackets = append(tmpl.ATM.Brackets, types.Bracket{
			Quantity:     b.Quantity,
			StopLoss:     b.StopLoss,
			Target:       b.Target,
			TrailingStop: b.TrailingStop,
		})
	}
	return tmpl, nil
}

// ParseFlazh decodes a vendor Flazh parameter document.
func ParseFlazh(data []byte) (*types.Template, error) {
	var doc flazhXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	if doc.Template == "" {
		return nil, fmt.Errorf("missing Template name element")
	}

	return &types.Template{
		Type:       types.TemplateTypeFlazh,
		Name:       doc.Template,
		Conditions: conditionsFromXML(doc.Conditions),
		Flazh: &types.FlazhParameters{
			FastPeriod:       doc.FastPeriod,
			MediumPeriod:     doc.MediumPeriod,
			SlowPeriod:       doc.SlowPeriod,
			FastRange:        doc.FastRange,
			MediumRange:      doc.MediumRange,
			SlowRange:        doc.SlowRange,
			FilterMultiplier: doc.FilterMultiplier,
			StopLoss:         doc.StopLoss,
			Target:           doc.Target,
			TrailingStop:     doc.TrailingStop,
		},
	}, nil
}

// Export writes a template back out in the platform's folder layout.
func (i *Importer) Export(tmpl *types.Template) error {
	var (
		sub  string
		doc  any
		name = sanitizeFileName(tmpl.Name)
	)

	switch {
	case tmpl.Type == types.TemplateTypeATM && tmpl.ATM != nil:
		sub = atmFolder
		doc = atmToXML(tmpl)
	case tmpl.Type == types.TemplateTypeFlazh && tmpl.Flazh != nil:
		sub = flazhFolder
		doc = flazhToXML(tmpl)
	default:
		return fmt.Errorf("template %q has no exportable parameters", tmpl.Name)
	}

	dir := filepath.Join(i.dir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create template folder: %w", err)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	path := filepath.Join(dir, name+".xml")
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write template file: %w", err)
	}

	i.logger.Info("Template exported",
		zap.String("name", tmpl.Name), zap.String("path", path))
	return nil
}

func atmToXML(tmpl *types.Template) atmXML {
	doc := atmXML{
		Template:        tmpl.Name,
		StopLoss:        tmpl.ATM.StopLoss,
		ProfitTarget:    tmpl.ATM.Target,
		TrailingStop:    tmpl.ATM.TrailingStop,
		BreakevenTicks:  tmpl.ATM.BreakevenTicks,
		CalculationMode: string(tmpl.ATM.CalculationMode),
		Conditions:      conditionsToXML(tmpl.Conditions),
	}
	for _, b := range tmpl.ATM.Brackets {
		doc.Brackets = append(doc.Brackets, bracketXML{
			Quantity:     b.Quantity,
			StopLoss:     b.StopLoss,
			Target:       b.Target,
			TrailingStop: b.TrailingStop,
		})
	}
	return doc
}

func flazhToXML(tmpl *types.Template) flazhXML {
	return flazhXML{
		Template:         tmpl.Name,
		FastPeriod:       tmpl.Flazh.FastPeriod,
		MediumPeriod:     tmpl.Flazh.MediumPeriod,
		SlowPeriod:       tmpl.Flazh.SlowPeriod,
		FastRange:        tmpl.Flazh.FastRange,
		MediumRange:      tmpl.Flazh.MediumRange,
		SlowRange:        tmpl.Flazh.SlowRange,
		FilterMultiplier: tmpl.Flazh.FilterMultiplier,
		StopLoss:         tmpl.Flazh.StopLoss,
		Target:           tmpl.Flazh.Target,
		TrailingStop:     tmpl.Flazh.TrailingStop,
		Conditions:       conditionsToXML(tmpl.Conditions),
	}
}

func conditionsFromXML(c conditionsXML) types.MarketConditions {
	return types.MarketConditions{
		Session:    types.Session(strings.ToUpper(strings.TrimSpace(c.Session))),
		Volatility: types.Volatility(strings.ToUpper(strings.TrimSpace(c.Volatility))),
		DayOfWeek:  strings.TrimSpace(c.DayOfWeek),
		Trend:      types.Trend(strings.ToUpper(strings.TrimSpace(c.Trend))),
		Volume:     types.VolumeLevel(strings.ToUpper(strings.TrimSpace(c.Volume))),
	}
}

func conditionsToXML(c types.MarketConditions) conditionsXML {
	return conditionsXML{
		Session:    string(c.Session),
		Volatility: string(c.Volatility),
		DayOfWeek:  c.DayOfWeek,
		Trend:      string(c.Trend),
		Volume:     string(c.Volume),
	}
}

func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(name)
}
