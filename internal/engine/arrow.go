package engine

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

var measurementSchema = arrow.NewSchema([]arrow.Field{
	{Name: "year", Type: arrow.PrimitiveTypes.Int32},
	{Name: "iso_code", Type: arrow.BinaryTypes.String},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// WriteArrow writes the store as a single-record Arrow IPC file.
func (cs *ColumnStore) WriteArrow(w io.Writer) error {
	mem := memory.NewGoAllocator()

	b := array.NewRecordBuilder(mem, measurementSchema)
	defer b.Release()

	b.Field(0).(*array.Int32Builder).AppendValues(cs.Years, nil)
	isoB := b.Field(1).(*array.StringBuilder)
	isoB.Reserve(len(cs.CountryIDs))
	for _, id := range cs.CountryIDs {
		isoB.Append(cs.CountryDict[id])
	}
	b.Field(2).(*array.Float64Builder).AppendValues(cs.Values, nil)

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(measurementSchema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return nil
}
