package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/verify"
)

var (
	kernels     = flag.String("kernels", "all", "Comma-separated kernel names to verify, or 'all'")
	workers     = flag.Int("workers", 0, "Worker count for kernel dispatch (0 = NumCPU)")
	ropeCheck   = flag.Bool("rope", true, "Run the rotary kernel self-check")
	artifactDir = flag.String("artifacts", "", "Directory for CBOR failure artifacts")
	cpuProfile  = flag.String("cpuprofile", "", "Write cpu profile to file")
	enableOTel  = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	metricsAddr = flag.String("metrics", "", "Address to serve Prometheus metrics on (e.g. :9100)")
	absTol      = flag.Float64("abs-tol", verify.DefaultAbsTol, "Absolute tolerance")
	relTol      = flag.Float64("rel-tol", verify.DefaultRelTol, "Relative tolerance")
)

// sweepShapes are the verification sizes, from the single-element smoke case
// up to full prefill panels.
var sweepShapes = []struct {
	tokens, cols, rows uint32
}{
	{1, 32, 1},
	{1, 64, 8},
	{4, 256, 64},
	{17, 512, 33},
	{64, 1024, 256},
	{128, 2880, 512},
}

var allKinds = []device.MatmulKind{
	device.MatmulDecode,
	device.MatmulPrefillQKV,
	device.MatmulPrefillAttnOutput,
	device.MatmulPrefillMLPGate,
}

func selectKinds(list string) []device.MatmulKind {
	if list == "all" {
		return allKinds
	}
	byName := map[string]device.MatmulKind{}
	for _, k := range allKinds {
		byName[k.String()] = k
	}
	var kinds []device.MatmulKind
	for _, name := range strings.Split(list, ",") {
		k, ok := byName[strings.TrimSpace(name)]
		if !ok {
			log.Fatal().Str("kernel", name).Msg("Unknown kernel name")
		}
		kinds = append(kinds, k)
	}
	return kinds
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info().Str("addr", *metricsAddr).Msg("Serving Prometheus metrics")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn().Err(err).Msg("Metrics listener stopped")
			}
		}()
	}

	ctx := device.NewContext()
	if *workers > 0 {
		ctx.SetWorkers(*workers)
	}

	tracer := otel.Tracer("bodkin")
	printer := message.NewPrinter(language.English)
	kinds := selectKinds(*kernels)

	start := time.Now()
	var runs, failures int
	var elements int64

	for _, kind := range kinds {
		_, span := tracer.Start(context.Background(), kind.String(),
			trace.WithAttributes(attribute.String("kernel", kind.String())))
		for _, s := range sweepShapes {
			tester := verify.NewMatmulTester(ctx).
				NumTokens(s.tokens).
				NumCols(s.cols).
				NumRows(s.rows).
				Tolerances(*absTol, *relTol)
			if *artifactDir != "" {
				tester.ArtifactDir(*artifactDir)
			}

			runs++
			elements += int64(s.tokens) * int64(s.rows)
			if err := tester.Run(kind); err != nil {
				failures++
				log.Error().
					Err(err).
					Str("kernel", kind.String()).
					Uint32("tokens", s.tokens).
					Uint32("cols", s.cols).
					Uint32("rows", s.rows).
					Msg("Verification FAILED")
				continue
			}
			log.Info().
				Str("kernel", kind.String()).
				Uint32("tokens", s.tokens).
				Uint32("cols", s.cols).
				Uint32("rows", s.rows).
				Msg("Verified")
		}
		span.End()
	}

	if *ropeCheck {
		_, span := tracer.Start(context.Background(), "f32_rope")
		runs++
		if err := runRopeCheck(ctx); err != nil {
			failures++
			log.Error().Err(err).Msg("Rotary self-check FAILED")
		} else {
			log.Info().Msg("Rotary self-check passed")
		}
		span.End()
	}

	printer.Printf("verified %d run(s), %d element comparisons, %d failure(s) in %v\n",
		runs, elements, failures, time.Since(start).Round(time.Millisecond))
	if failures > 0 {
		os.Exit(1)
	}
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("bodkin"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
