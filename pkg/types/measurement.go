// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MeasurementKind names one of the typed measurement stores.
type MeasurementKind string

const (
	KindPhotophysical MeasurementKind = "photophysical"
	KindDevice        MeasurementKind = "device"
)

// Kinds lists every measurement kind in store order.
var Kinds = []MeasurementKind{KindPhotophysical, KindDevice}

// QualityFlag is the quality tier assigned by validation.
type QualityFlag string

const (
	QualityValid   QualityFlag = "valid"
	QualitySuspect QualityFlag = "suspect"
	QualityInvalid QualityFlag = "invalid"
)

// RecordHeader carries the identity and quality fields shared by every
// measurement record. Records arrive from extraction with only PaperID,
// LocalLabel, and provenance filled; alignment attaches CompoundID and
// validation attaches QualityFlag and QualityIssues.
type RecordHeader struct {
	// RecordID is the upsert key. Derived from paper, label, and compound
	// when left empty.
	RecordID string `json:"record_id,omitempty" yaml:"record_id,omitempty"`

	PaperID    string `json:"paper_id" yaml:"paper_id"`
	LocalLabel string `json:"local_label" yaml:"local_label"`
	CompoundID string `json:"compound_id,omitempty" yaml:"compound_id,omitempty"`

	// TableID and SourceSnippet point back at the table row the record came from.
	TableID       string `json:"table_id,omitempty" yaml:"table_id,omitempty"`
	SourceSnippet string `json:"source_snippet,omitempty" yaml:"source_snippet,omitempty"`

	QualityFlag   QualityFlag `json:"quality_flag,omitempty" yaml:"quality_flag,omitempty"`
	QualityIssues []string    `json:"quality_issues,omitempty" yaml:"quality_issues,omitempty"`
}

// NumericField is one optional numeric measurement, named by its field name.
type NumericField struct {
	Name  string
	Value *float64
}

// Field is one named measurement value (text or numeric) in declaration order.
// Value is nil when the field is absent.
type Field struct {
	Name  string
	Value any
}

// Record is implemented by every measurement record variant.
type Record interface {
	Kind() MeasurementKind
	Header() *RecordHeader
	// Numeric returns the numeric fields subject to validation.
	Numeric() []NumericField
	// Fields returns every measurement field in declaration order.
	Fields() []Field
}

// Float returns a pointer to v, for filling optional numeric fields.
func Float(v float64) *float64 { return &v }

// PhotophysicalRecord is one row of a photophysical property table.
type PhotophysicalRecord struct {
	RecordHeader `yaml:",inline"`

	Name              string   `json:"name,omitempty" yaml:"name,omitempty"`
	EnvironmentType   string   `json:"environment_type,omitempty" yaml:"environment_type,omitempty"`
	EnvironmentDetail string   `json:"environment_detail,omitempty" yaml:"environment_detail,omitempty"`
	Host              string   `json:"host,omitempty" yaml:"host,omitempty"`
	DopingWtPercent   *float64 `json:"doping_wt_percent" yaml:"doping_wt_percent"`
	TemperatureK      *float64 `json:"temperature_K" yaml:"temperature_K"`
	LambdaPLNm        *float64 `json:"lambda_PL_nm" yaml:"lambda_PL_nm"`
	LambdaEmNm        *float64 `json:"lambda_em_nm" yaml:"lambda_em_nm"`
	FWHMNm            *float64 `json:"FWHM_nm" yaml:"FWHM_nm"`
	PhiPL             *float64 `json:"Phi_PL" yaml:"Phi_PL"`
	DeltaESTeV        *float64 `json:"Delta_EST_eV" yaml:"Delta_EST_eV"`
	TauPromptNs       *float64 `json:"tau_prompt_ns" yaml:"tau_prompt_ns"`
	TauDelayedUs      *float64 `json:"tau_delayed_us" yaml:"tau_delayed_us"`
	KR                *float64 `json:"k_r" yaml:"k_r"`
	KISC              *float64 `json:"k_ISC" yaml:"k_ISC"`
	KRISC             *float64 `json:"k_RISC" yaml:"k_RISC"`
	Note              string   `json:"note,omitempty" yaml:"note,omitempty"`
}

func (r *PhotophysicalRecord) Kind() MeasurementKind  { return KindPhotophysical }
func (r *PhotophysicalRecord) Header() *RecordHeader { return &r.RecordHeader }

func (r *PhotophysicalRecord) Numeric() []NumericField {
	return []NumericField{
		{"doping_wt_percent", r.DopingWtPercent},
		{"temperature_K", r.TemperatureK},
		{"lambda_PL_nm", r.LambdaPLNm},
		{"lambda_em_nm", r.LambdaEmNm},
		{"FWHM_nm", r.FWHMNm},
		{"Phi_PL", r.PhiPL},
		{"Delta_EST_eV", r.DeltaESTeV},
		{"tau_prompt_ns", r.TauPromptNs},
		{"tau_delayed_us", r.TauDelayedUs},
		{"k_r", r.KR},
		{"k_ISC", r.KISC},
		{"k_RISC", r.KRISC},
	}
}

func (r *PhotophysicalRecord) Fields() []Field {
	fields := []Field{
		{"name", text(r.Name)},
		{"environment_type", text(r.EnvironmentType)},
		{"environment_detail", text(r.EnvironmentDetail)},
		{"host", text(r.Host)},
	}
	fields = appendNumeric(fields, r.Numeric())
	return append(fields, Field{"note", text(r.Note)})
}

// DeviceRecord is one row of an OLED device performance table.
type DeviceRecord struct {
	RecordHeader `yaml:",inline"`

	EmitterName       string   `json:"emitter_name,omitempty" yaml:"emitter_name,omitempty"`
	DeviceStructure   string   `json:"device_structure,omitempty" yaml:"device_structure,omitempty"`
	Host              string   `json:"host,omitempty" yaml:"host,omitempty"`
	DopingWtPercent   *float64 `json:"doping_wt_percent" yaml:"doping_wt_percent"`
	LambdaELNm        *float64 `json:"lambda_EL_nm" yaml:"lambda_EL_nm"`
	CIEx              *float64 `json:"CIE_x" yaml:"CIE_x"`
	CIEy              *float64 `json:"CIE_y" yaml:"CIE_y"`
	EQEMaxPercent     *float64 `json:"EQE_max_percent" yaml:"EQE_max_percent"`
	EQE100            *float64 `json:"EQE_100_cd_m2" yaml:"EQE_100_cd_m2"`
	EQE1000           *float64 `json:"EQE_1000_cd_m2" yaml:"EQE_1000_cd_m2"`
	LMaxCdM2          *float64 `json:"L_max_cd_m2" yaml:"L_max_cd_m2"`
	VonV              *float64 `json:"Von_V" yaml:"Von_V"`
	CurrentEfficiency *float64 `json:"current_efficiency" yaml:"current_efficiency"`
	PowerEfficiency   *float64 `json:"power_efficiency" yaml:"power_efficiency"`
}

func (r *DeviceRecord) Kind() MeasurementKind  { return KindDevice }
func (r *DeviceRecord) Header() *RecordHeader { return &r.RecordHeader }

func (r *DeviceRecord) Numeric() []NumericField {
	return []NumericField{
		{"doping_wt_percent", r.DopingWtPercent},
		{"lambda_EL_nm", r.LambdaELNm},
		{"CIE_x", r.CIEx},
		{"CIE_y", r.CIEy},
		{"EQE_max_percent", r.EQEMaxPercent},
		{"EQE_100_cd_m2", r.EQE100},
		{"EQE_1000_cd_m2", r.EQE1000},
		{"L_max_cd_m2", r.LMaxCdM2},
		{"Von_V", r.VonV},
		{"current_efficiency", r.CurrentEfficiency},
		{"power_efficiency", r.PowerEfficiency},
	}
}

func (r *DeviceRecord) Fields() []Field {
	fields := []Field{
		{"emitter_name", text(r.EmitterName)},
		{"device_structure", text(r.DeviceStructure)},
		{"host", text(r.Host)},
	}
	return appendNumeric(fields, r.Numeric())
}

// NewRecord returns an empty record of the given kind, or nil for an
// unknown kind.
func NewRecord(kind MeasurementKind) Record {
	switch kind {
	case KindPhotophysical:
		return &PhotophysicalRecord{}
	case KindDevice:
		return &DeviceRecord{}
	default:
		return nil
	}
}

func text(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func appendNumeric(fields []Field, nums []NumericField) []Field {
	for _, n := range nums {
		var v any
		if n.Value != nil {
			v = *n.Value
		}
		fields = append(fields, Field{n.Name, v})
	}
	return fields
}
