// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"regexp"
	"strings"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// tableKeywords lists caption keywords per table kind. Short acronyms match
// as whole words only.
var tableKeywords = []struct {
	kind  types.TableKind
	words []string
}{
	{types.TablePhotophysical, []string{"photophysical", "optical", "luminescence", "PL", "PLQY", "emission", "FWHM", "ΔEST", "lifetime"}},
	{types.TableDevice, []string{"device", "OLED", "EQE", "EL", "electroluminescence", "current efficiency", "power efficiency", "brightness", "luminance"}},
	{types.TableComputational, []string{"calculated", "DFT", "TD-DFT", "computation", "computed", "HOMO", "LUMO"}},
}

var keywordRes = func() map[types.TableKind][]*regexp.Regexp {
	out := make(map[types.TableKind][]*regexp.Regexp)
	for _, k := range tableKeywords {
		for _, w := range k.words {
			pat := regexp.QuoteMeta(strings.ToLower(w))
			if len(w) <= 4 {
				pat = `(?:^|[^\pL\pN])` + pat + `(?:$|[^\pL\pN])`
			}
			out[k.kind] = append(out[k.kind], regexp.MustCompile(pat))
		}
	}
	return out
}()

// ClassifyTable assigns a kind from the caption. The kind with the most
// keyword hits wins; ties go to photophysical, then device, then
// computational.
func ClassifyTable(caption string) types.TableKind {
	c := strings.ToLower(caption)
	best, bestHits := types.TableUnknown, 0
	for _, k := range tableKeywords {
		hits := 0
		for _, re := range keywordRes[k.kind] {
			if re.MatchString(c) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = k.kind, hits
		}
	}
	return best
}
