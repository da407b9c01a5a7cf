package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"goflare.io/foldscope/pkg/geometry"
	"goflare.io/foldscope/pkg/measurement"
)

var measureCmd = &cobra.Command{
	Use:   "measure <distance|angle|surface> <x,y,z>...",
	Short: "Measure between picked points",
	Long: `Feed points to a measurement session in order. Every time enough points are
collected for the chosen kind, the finished measurement is printed. Distances
take two points, angles and surfaces take three; for angles the second point
is the vertex.`,
	Example: `  foldscope measure distance 0,0,0 3,4,0
  foldscope measure angle 1,0,0 0,0,0 0,1,0`,
	Args:      cobra.MinimumNArgs(2),
	ValidArgs: []string{"distance", "angle", "surface"},
	RunE:      runMeasure,
}

func init() {
	rootCmd.AddCommand(measureCmd)
}

func runMeasure(cmd *cobra.Command, args []string) error {
	kind, err := measurement.ParseKind(args[0])
	if err != nil {
		return err
	}

	session, err := measurement.NewSession(kind)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, arg := range args[1:] {
		p, err := parsePoint(arg)
		if err != nil {
			return err
		}
		m, err := session.AddPoint(p)
		if err != nil {
			return err
		}
		if m != nil {
			fmt.Fprintf(out, "%s\t%s\n", m.Kind, m.Label)
		}
	}

	if pending := session.Pending(); len(pending) > 0 {
		fmt.Fprintln(out, session.Status())
	}
	return nil
}

// parsePoint reads "x,y,z".
func parsePoint(s string) (geometry.Point3D, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geometry.Point3D{}, fmt.Errorf("%w: point %q must be x,y,z", measurement.ErrInvalidInput, s)
	}

	var coords [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geometry.Point3D{}, fmt.Errorf("%w: point %q: %v", measurement.ErrInvalidInput, s, err)
		}
		coords[i] = v
	}
	return geometry.NewPoint3D(coords[0], coords[1], coords[2]), nil
}
