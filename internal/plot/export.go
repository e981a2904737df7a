package plot

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"reflow_oven/internal/models"
)

// CSVRow formats the point recorded at tick t as
// state,time,target,actual,heater,fan,t1,t2,t3,t4;
// A missing average is written as "nan".
func CSVRow(t int, dp DataPoint) string {
	var b strings.Builder
	avg := "nan"
	if a, ok := dp.AverageTemperature(); ok {
		avg = strconv.FormatFloat(a, 'f', 1, 64)
	}
	fmt.Fprintf(&b, "%s,%d,%.1f,%s,%d,%d", dp.State(), t, dp.Target(), avg, dp.Heater(), dp.Fan())
	for i := 0; i < models.NumThermocouples; i++ {
		temp, _ := dp.Channel(i)
		fmt.Fprintf(&b, ",%.1f", temp)
	}
	b.WriteByte(';')
	return b.String()
}

// WriteCSV writes every recorded point, one row per line.
func (p *Plot) WriteCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for t, dp := range p.Points() {
		if _, err := bw.WriteString(CSVRow(t, dp) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
