package router

import (
	"fmt"
	"strings"

	"github.com/malbeclabs/aquabot/internal/store"
)

const blockHint = "You can also ask about a specific block (e.g., 'What is the condition of Achhnera block?')."

func rechargeDetails(d store.District) string {
	return fmt.Sprintf(`Here are the **Recharge Details** for **%s**:

--- **Recharge Details** ---
- **From Rainfall (Monsoon):** %s
- **From Other Sources (Monsoon):** %s
- **From Rainfall (Non-Monsoon):** %s
- **From Other Sources (Non-Monsoon):** %s`,
		d.Name(),
		d.Get(store.ColRainfallMonsoon),
		d.Get(store.ColOtherMonsoon),
		d.Get(store.ColRainfallNonMonsoon),
		d.Get(store.ColOtherNonMonsoon),
	)
}

func availabilityDetails(d store.District) string {
	return fmt.Sprintf(`Here is the **Overall Availability** for **%s**:

--- **Overall Availability** ---
- **Total Annual Recharge:** %s
- **Total Natural Discharges:** %s
- **Annual Extractable Resource:** %s
- **Net Availability for Future Use:** %s`,
		d.Name(),
		d.Get(store.ColTotalRecharge),
		d.Get(store.ColNaturalDischarges),
		d.Get(store.ColExtractableResource),
		d.Get(store.ColNetAvailability),
	)
}

func extractionDetails(d store.District) string {
	return fmt.Sprintf(`Here are the **Extraction Details** for **%s**:

--- **Extraction Details** ---
- **Irrigation:** %s ham
- **Industrial:** %s
- **Domestic:** %s
- **Total Extraction:** %s`,
		d.Name(),
		d.Get(store.ColIrrigation),
		d.Get(store.ColIndustrial),
		d.Get(store.ColDomestic),
		d.Get(store.ColTotalExtraction),
	)
}

func statusDetails(d store.District) string {
	return fmt.Sprintf(`Here is the **Status** for **%s**:

--- **Status** ---
- **Stage of Extraction (%%):** %s%%
- **Projected Domestic Allocation (2025):** %s`,
		d.Name(),
		d.Get(store.ColExtractionStage),
		d.Get(store.ColDomesticAllocation),
	)
}

// fullReport joins the body of every section, each without its heading.
func fullReport(d store.District) string {
	sections := []string{
		rechargeDetails(d),
		availabilityDetails(d),
		extractionDetails(d),
		statusDetails(d),
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the comprehensive report for **%s**:\n\n", d.Name())
	for _, s := range sections {
		b.WriteString(sectionBody(s))
		b.WriteString("\n\n")
	}
	b.WriteString(blockHint)
	return b.String()
}

func sectionBody(s string) string {
	_, body, ok := strings.Cut(s, "---")
	if !ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(body)
}
