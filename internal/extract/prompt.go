// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// photophysicalPromptTmpl is the system prompt for photophysical property
// tables.
var photophysicalPromptTmpl = template.Must(template.New("photophysical").Parse(`You are a scientific data extraction system for thermally activated delayed fluorescence (TADF) literature. Extract the photophysical data from the table below.

Return one JSON object per table row with these keys:
- paper_local_id: the compound label used in the paper (e.g. "1", "2a", "3b")
- name: the compound name, if given
- environment_type: one of "solution", "doped_film", "neat_film", "crystal", "device"
- environment_detail: solvent, concentration or other measurement conditions
- host: host material for doped films
- doping_wt_percent: dopant concentration in wt%
- temperature_K: measurement temperature in K
- lambda_PL_nm: photoluminescence peak wavelength in nm
- lambda_em_nm: emission wavelength in nm
- FWHM_nm: full width at half maximum in nm
- Phi_PL: photoluminescence quantum yield as a fraction between 0 and 1
- Delta_EST_eV: singlet-triplet energy gap in eV
- tau_prompt_ns: prompt fluorescence lifetime in ns
- tau_delayed_us: delayed fluorescence lifetime in μs
- k_r, k_ISC, k_RISC: radiative, intersystem crossing and reverse intersystem crossing rate constants in s^-1

Rules:
1. Extract only what the table states. Never guess or invent values.
2. Use null for missing fields.
3. Convert units: percentages become fractions for Phi_PL (90% becomes 0.90), wavelengths in nm, energies in eV, temperatures in K.
4. Use the context paragraphs, if any, only to fill in measurement conditions.

Respond with a JSON array and no other text.`))

// devicePromptTmpl is the system prompt for OLED device tables.
var devicePromptTmpl = template.Must(template.New("device").Parse(`You are a scientific data extraction system for thermally activated delayed fluorescence (TADF) literature. Extract the OLED device performance data from the table below.

Return one JSON object per table row with these keys:
- paper_local_id: the emitter label used in the paper (e.g. "1", "2a")
- emitter_name: the emitter name
- device_structure: the layer stack (e.g. "ITO/TAPC/EML/TmPyPB/LiF/Al")
- host: host material
- doping_wt_percent: emitter concentration in wt%
- lambda_EL_nm: electroluminescence peak wavelength in nm
- CIE_x, CIE_y: CIE 1931 color coordinates
- EQE_max_percent: maximum external quantum efficiency in %
- EQE_100_cd_m2, EQE_1000_cd_m2: EQE in % at 100 and 1000 cd/m²
- L_max_cd_m2: maximum luminance in cd/m²
- Von_V: turn-on voltage in V
- current_efficiency: maximum current efficiency in cd/A
- power_efficiency: maximum power efficiency in lm/W

Rules:
1. Extract only what the table states. Never guess.
2. Use null for missing fields.
3. Keep EQE as a percentage (25.3 means 25.3%).

Respond with a JSON array and no other text.`))

// userPromptTmpl carries the table itself.
var userPromptTmpl = template.Must(template.New("user").Parse(`Table caption: {{.Caption}}

Table:
{{.Content}}
{{- if .Paragraphs}}

Context paragraphs:
{{range .Paragraphs}}{{.}}
{{end}}{{end}}`))

// renderPrompt executes the system and user templates for one table.
func renderPrompt(kind types.MeasurementKind, table types.Table, paragraphs []string) (string, string, error) {
	var tmpl *template.Template
	switch kind {
	case types.KindPhotophysical:
		tmpl = photophysicalPromptTmpl
	case types.KindDevice:
		tmpl = devicePromptTmpl
	default:
		return "", "", fmt.Errorf("no prompt for %s", kind)
	}

	var sys bytes.Buffer
	if err := tmpl.Execute(&sys, nil); err != nil {
		return "", "", err
	}

	if len(paragraphs) > maxContextParagraphs {
		paragraphs = paragraphs[:maxContextParagraphs]
	}
	var user bytes.Buffer
	err := userPromptTmpl.Execute(&user, struct {
		Caption    string
		Content    string
		Paragraphs []string
	}{table.Caption, table.Content, paragraphs})
	if err != nil {
		return "", "", err
	}
	return sys.String(), user.String(), nil
}
