package report

import (
	"fmt"
	"strings"
)

type annotation struct {
	label string
	value string
}

var defaultCurrentMeta = []annotation{
	{"emax", "100.0"},
	{"emin", "0.0"},
	{"flux", "0.002"},
	{"err", "0.1"},
}

func energyRows(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "  %.4E  %.4E  %.4E  %.4f  %.4E  %.4f\n",
			float64(i)*10, float64(i+1)*10, 1e-3*float64(i+1), 0.1, 2e-3*float64(i+1), 0.05)
	}
	return b.String()
}

func annotations(meta []annotation) string {
	var b strings.Builder
	for _, a := range meta {
		fmt.Fprintf(&b, "    %s &=& %s \\\\\n", a.label, a.value)
	}
	return b.String()
}

// tablePage renders a T-Cross style page with a table under header.
func tablePage(id int, header, rows, title string, meta []annotation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#newpage:\n#  no. = %d   tally = T-Cross\n", id)
	b.WriteString("#  mesh = reg   axis = eng\n")
	b.WriteString("h: n x y(proton) n y(neutron) n\n")
	fmt.Fprintf(&b, "#  %s      upper      proton       r.err      neutron      r.err\n", header)
	b.WriteString(rows)
	b.WriteString("#   sum over all\n'\n  space\n")
	fmt.Fprintf(&b, "    %s\n", title)
	b.WriteString(annotations(meta))
	b.WriteString("e:\n\n")
	return b.String()
}

func currentPage(id int, nrows int, meta []annotation) string {
	return tablePage(id, "e-lower", energyRows(nrows), "Forward current", meta)
}

func meshValues(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, " %.3E", float64(i+1)*1e-3)
		if (i+1)%10 == 0 {
			b.WriteString("\n")
		}
	}
	if n%10 != 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func meshPage(id, nx, nz, tokens int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#newpage:\n#  no. = %d   tally = T-Track\n", id)
	fmt.Fprintf(&b, "#  nx = %4d   nz = %4d\n", nx, nz)
	b.WriteString("#  axis = xz\n")
	fmt.Fprintf(&b, "hc:  y = %.1f to %.1f by %.1f ; x = %.1f to %.1f by %.1f ;\n",
		float64(nz), -float64(nz), 2.0, -float64(nx), float64(nx), 2.0)
	b.WriteString(meshValues(tokens))
	b.WriteString("#  gshow = 1\n'\nspace\n")
	b.WriteString("   max &=& 1.0E+00 \\\\\n")
	b.WriteString("   min &=& 0.0 \\\\\n")
	b.WriteString("   aver &=& 3.0E-01 \\\\\n")
	b.WriteString("   err &=& 0.1 \\\\\n")
	b.WriteString("   part... &=& neutron \n")
	b.WriteString("e:\n\n")
	return b.String()
}

func depositPage(id int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#newpage:\n#  no. = %d   tally = T-Deposit\n", id)
	b.WriteString("#  num   reg     volume     all        r.err\n")
	b.WriteString("     1   101   1.0000E+00  2.5000E-02  0.0300\n")
	b.WriteString("     2   102   2.0000E+00  1.5000E-02  0.0400\n")
	b.WriteString("\n")
	b.WriteString("#  sum over   3.0000E+00  4.0000E-02  0.0250\n\n")
	return b.String()
}

const summaryDoc = `
 *** general output ***

 prod. particles       number        weight        weight per source
-----------------------------------------------------------------------
       neutron           1000   5.0000000E-01   5.0000000E-04
        proton             10   1.0000000E-02   1.0000000E-05
-----------------------------------------------------------------------

 leak. particles       number        weight        weight per source
-----------------------------------------------------------------------
       neutron            900   4.5000000E-01   4.5000000E-04
-----------------------------------------------------------------------
`
