package main

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wirecall/internal/config"
	"github.com/vango-dev/wirecall/internal/errors"
	"github.com/vango-dev/wirecall/pkg/tensor"
)

func tensorCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tensor",
		Short: "Inspect and encode serialized tensors",
		Long: `Inspect and encode tensors in the binary segment format.

A tensor reference is a file path, "-" for stdio or s3://bucket/key.

Dtypes: f32 f64 i8 i16 i32 i64 u8 u16 u32 u64 string binary bool image audio video`,
	}
	cmd.AddCommand(tensorInspectCmd(g), tensorEncodeCmd(g))
	return cmd
}

// tensorInfo is the JSON printed by tensor inspect.
type tensorInfo struct {
	DType    string   `json:"dtype"`
	Shape    []uint64 `json:"shape"`
	Elements int      `json:"elements"`
	Bytes    int      `json:"bytes"`
	ZeroCopy bool     `json:"zeroCopy"`
	Values   any      `json:"values,omitempty"`
}

func tensorInspectCmd(g *globals) *cobra.Command {
	var (
		values bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "inspect <ref>",
		Short: "Validate a tensor and print its header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTensorInspect(cmd.Context(), g, args[0], values, limit)
		},
	}

	cmd.Flags().BoolVar(&values, "values", false, "Print element values")
	cmd.Flags().IntVar(&limit, "limit", 16, "Maximum number of values printed (0 prints all)")

	return cmd
}

func runTensorInspect(ctx context.Context, g *globals, ref string, values bool, limit int) error {
	src := newBlobSource(g, config.New())
	data, err := src.Read(ctx, ref)
	if err != nil {
		return errors.New("E502").WithDetail(ref).Wrap(err)
	}

	o, err := tensor.FromBytes(data)
	if err != nil {
		return err
	}
	info := tensorInfo{
		DType:    o.DType().String(),
		Shape:    o.Shape(),
		Elements: o.Len(),
		Bytes:    len(data),
		ZeroCopy: o.ZeroCopy(),
	}
	if info.Shape == nil {
		info.Shape = []uint64{}
	}
	if values {
		t, err := o.Tensor()
		if err != nil {
			return err
		}
		info.Values = truncate(t.Values(), limit)
	}
	return printJSON(g.stdout, info)
}

// truncate returns the first limit elements of the slice v.
func truncate(v any, limit int) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || limit <= 0 || rv.Len() <= limit {
		return v
	}
	return rv.Slice(0, limit).Interface()
}

type encodeOptions struct {
	dtype      string
	shape      string
	values     string
	valuesFrom string
	zeros      bool
	output     string
}

func tensorEncodeCmd(g *globals) *cobra.Command {
	opts := &encodeOptions{}

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a tensor from JSON values",
		Long: `Encode a tensor from a JSON array of values and write it to --output.

Values are numbers for numeric dtypes, strings for string, base64 strings
for binary, booleans for bool and {"Format":"png","Data":"<base64>"}
objects for image, audio and video.

Examples:
  wirecall tensor encode --dtype f32 --shape 2,2 --values '[1,2,3,4]' -o x.tensor
  wirecall tensor encode --dtype u8 --shape 1024 --zeros -o s3://models/blank.tensor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTensorEncode(cmd.Context(), g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dtype, "dtype", "f32", "Element dtype")
	cmd.Flags().StringVar(&opts.shape, "shape", "", "Comma-separated dimensions (empty for a scalar)")
	cmd.Flags().StringVar(&opts.values, "values", "", "JSON array of values")
	cmd.Flags().StringVar(&opts.valuesFrom, "values-from", "", "Read the JSON array of values from a reference")
	cmd.Flags().BoolVar(&opts.zeros, "zeros", false, "Fill the tensor with zero values")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "Output reference")

	return cmd
}

func runTensorEncode(ctx context.Context, g *globals, opts *encodeOptions) error {
	dtype, err := tensor.ParseDType(opts.dtype)
	if err != nil {
		return errors.New("E501").Wrap(err).
			WithSuggestion("Run 'wirecall tensor --help' for the list of dtypes")
	}
	shape, err := parseShape(opts.shape)
	if err != nil {
		return err
	}
	src := newBlobSource(g, config.New())

	var t *tensor.Tensor
	switch {
	case opts.zeros:
		t, err = tensor.Zeros(dtype, shape)
	default:
		raw := []byte(opts.values)
		if opts.valuesFrom != "" {
			if raw, err = src.Read(ctx, opts.valuesFrom); err != nil {
				return errors.New("E502").WithDetail(opts.valuesFrom).Wrap(err)
			}
		}
		if len(raw) == 0 {
			return errors.New("E501").
				WithDetail("No values given").
				WithSuggestion("Pass --values, --values-from or --zeros")
		}
		t, err = tensorFromJSON(dtype, shape, raw)
	}
	if err != nil {
		return err
	}

	data, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	if err := src.Write(ctx, opts.output, data); err != nil {
		return errors.New("E503").WithDetail(opts.output).Wrap(err)
	}
	if opts.output != "-" {
		g.logger.Info("tensor written", "tensor", t.String(), "bytes", len(data), "output", opts.output)
	}
	return nil
}

func parseShape(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	shape := make([]uint64, len(parts))
	for i, p := range parts {
		d, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, errors.New("E501").
				WithDetail("Invalid dimension " + strconv.Quote(p) + " in --shape")
		}
		shape[i] = d
	}
	return shape, nil
}

// tensorFromJSON builds a tensor of dtype from a JSON array.
func tensorFromJSON(dtype tensor.DType, shape []uint64, raw []byte) (*tensor.Tensor, error) {
	switch dtype {
	case tensor.Float32:
		return numericFromJSON[float32](shape, raw)
	case tensor.Float64:
		return numericFromJSON[float64](shape, raw)
	case tensor.Int8:
		return numericFromJSON[int8](shape, raw)
	case tensor.Int16:
		return numericFromJSON[int16](shape, raw)
	case tensor.Int32:
		return numericFromJSON[int32](shape, raw)
	case tensor.Int64:
		return numericFromJSON[int64](shape, raw)
	case tensor.Uint8:
		return numericFromJSON[uint8](shape, raw)
	case tensor.Uint16:
		return numericFromJSON[uint16](shape, raw)
	case tensor.Uint32:
		return numericFromJSON[uint32](shape, raw)
	case tensor.Uint64:
		return numericFromJSON[uint64](shape, raw)
	case tensor.String:
		var values []string
		if err := unmarshalValues(raw, &values); err != nil {
			return nil, err
		}
		return tensor.NewStrings(shape, values)
	case tensor.Binary:
		var values [][]byte
		if err := unmarshalValues(raw, &values); err != nil {
			return nil, err
		}
		return tensor.NewBinary(shape, values)
	case tensor.Bool:
		var values []bool
		if err := unmarshalValues(raw, &values); err != nil {
			return nil, err
		}
		return tensor.NewBools(shape, values)
	default:
		var values []tensor.Media
		if err := unmarshalValues(raw, &values); err != nil {
			return nil, err
		}
		return tensor.NewMedia(dtype, shape, values)
	}
}

func numericFromJSON[T tensor.Numeric](shape []uint64, raw []byte) (*tensor.Tensor, error) {
	var values []T
	if err := unmarshalValues(raw, &values); err != nil {
		return nil, err
	}
	return tensor.NewNumeric(shape, values)
}

func unmarshalValues(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("E501").
			WithDetail("Invalid tensor values: " + err.Error())
	}
	return nil
}
