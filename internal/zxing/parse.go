package zxing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/utils"
)

var (
	headerRe = regexp.MustCompile(`\(format: ([A-Za-z0-9_]+), type: [A-Za-z0-9_]+\):\s*$`)
	pointRe  = regexp.MustCompile(`^\s*Point \d+: \(([-+0-9.eE]+),([-+0-9.eE]+)\)`)
)

// parseOutput reads CommandLineRunner stdout. Each decoded symbol is a
// block of the form
//
//	file:/app/img.png (format: QR_CODE, type: URI):
//	Raw result:
//	<payload, possibly several lines>
//	Parsed result:
//	<parsed payload>
//	Found 4 result points.
//	  Point 0: (35.0,204.0)
//	  ...
//
// Finding nothing prints "No barcode found" per input, which is
// deliberately indistinguishable from the tool being broken: both end
// as a *ToolError.
func parseOutput(out string) ([]barcode.Result, error) {
	var results []barcode.Result
	var cur *barcode.Result
	var raw []string
	inRaw := false

	flush := func() {
		if cur == nil {
			return
		}
		cur.Payload = strings.Join(raw, "\n")
		finishGeometry(cur)
		results = append(results, *cur)
		cur = nil
		raw = nil
		inRaw = false
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case headerRe.MatchString(line):
			flush()
			name := headerRe.FindStringSubmatch(line)[1]
			format, err := barcode.ParseFormat(name)
			if err != nil {
				format = barcode.FormatUnknown
			}
			cur = &barcode.Result{Format: format, Engine: Engine}
		case cur == nil:
			continue
		case line == "Raw result:":
			inRaw = true
			raw = nil
		case line == "Parsed result:":
			inRaw = false
		case pointRe.MatchString(line):
			inRaw = false
			m := pointRe.FindStringSubmatch(line)
			x, _ := strconv.ParseFloat(m[1], 64)
			y, _ := strconv.ParseFloat(m[2], 64)
			cur.Points = append(cur.Points, barcode.Point{X: int(math.Round(x)), Y: int(math.Round(y))})
		case strings.HasPrefix(line, "Found ") && strings.Contains(line, "result point"):
			inRaw = false
		case inRaw:
			raw = append(raw, line)
		}
	}
	flush()

	if len(results) == 0 {
		return nil, &ToolError{Msg: "no barcode found"}
	}
	return results, nil
}

func finishGeometry(r *barcode.Result) {
	if len(r.Points) == 0 {
		return
	}
	r.BBox = barcode.BoundsFromPoints(r.Points)
	if len(r.Points) < 3 {
		return
	}
	fpts := make([]utils.Point, len(r.Points))
	for i, p := range r.Points {
		fpts[i] = utils.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	r.Orientation = utils.RectOrientationDegrees(utils.MinimumAreaRectangle(fpts))
}
