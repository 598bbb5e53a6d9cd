package instrlog

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/xitongsys/parquet-go-source/local"
)

// Trace file errors
var (
	ErrEmptyTrace   = errors.New("empty trace file")
	ErrInvalidTrace = errors.New("invalid trace format")
)

// traceColumns are the series every trace file carries.
var traceColumns = []string{"wct", "sit", "aid", "sid", "prc", "ins", "opr", "out"}

func validateTrace(df *dataframe.DataFrame) error {
	have := make(map[string]bool)
	for _, name := range df.Names() {
		have[name] = true
	}
	for _, want := range traceColumns {
		if !have[want] {
			return errors.Wrapf(ErrInvalidTrace, "missing column %q", want)
		}
	}
	return nil
}

// Frame builds a DataFrame over the recorded entries, one row per
// executed instruction. Undefined outcomes become nil values in the
// "out" series.
func (l *Logger) Frame() *dataframe.DataFrame {
	entries := l.Entries()

	wct := make([]interface{}, len(entries))
	sit := make([]interface{}, len(entries))
	aid := make([]interface{}, len(entries))
	sid := make([]interface{}, len(entries))
	prc := make([]interface{}, len(entries))
	ins := make([]interface{}, len(entries))
	opr := make([]interface{}, len(entries))
	out := make([]interface{}, len(entries))
	for i, e := range entries {
		wct[i] = e.WallTime.Format(time.RFC3339Nano)
		sit[i] = e.SimTime
		aid[i] = int64(e.AppID)
		sid[i] = int64(e.SubroutineID)
		prc[i] = int64(e.ProgramCounter)
		ins[i] = e.Instruction
		opr[i] = e.Operands
		if e.Outcome != nil {
			out[i] = int64(*e.Outcome)
		}
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesString("wct", nil, wct...),
		dataframe.NewSeriesInt64("sit", nil, sit...),
		dataframe.NewSeriesInt64("aid", nil, aid...),
		dataframe.NewSeriesInt64("sid", nil, sid...),
		dataframe.NewSeriesInt64("prc", nil, prc...),
		dataframe.NewSeriesString("ins", nil, ins...),
		dataframe.NewSeriesString("opr", nil, opr...),
		dataframe.NewSeriesInt64("out", nil, out...),
	)
}

// ExportCSV writes the trace as CSV.
func (l *Logger) ExportCSV(ctx context.Context, w io.Writer) error {
	return exports.ExportToCSV(ctx, w, l.Frame())
}

// ExportYAML writes the trace as YAML.
func (l *Logger) ExportYAML(w io.Writer) error {
	data, err := l.MarshalYAML()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// LoadCSV reads a trace CSV file back into a DataFrame.
// - First row is header (column names)
// - Auto-detects column types
func LoadCSV(path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ctx := context.Background()
	df, err := imports.LoadFromCSV(ctx, file, imports.CSVLoadOptions{
		InferDataTypes: true,
	})
	if err != nil {
		return nil, err
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyTrace
	}
	if err := validateTrace(df); err != nil {
		return nil, err
	}

	return df, nil
}

// LoadParquet reads a trace Parquet file back into a DataFrame.
func LoadParquet(path string) (*dataframe.DataFrame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	ctx := context.Background()

	df, err := imports.LoadFromParquet(ctx, fr)
	if err != nil {
		return nil, err
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyTrace
	}
	if err := validateTrace(df); err != nil {
		return nil, err
	}

	return df, nil
}
