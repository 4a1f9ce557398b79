// Public domain.

// Package viprog implements the skyvi command.
package viprog

import (
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/soniakeys/exit"
	"k8s.io/klog/v2"

	"github.com/asterhaus/skyvi/elbo"
	"github.com/asterhaus/skyvi/fieldio"
	"github.com/asterhaus/skyvi/fit"
	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/seed"
)

const versionString = "skyvi version 0.1 Go source."
const copyrightString = "Public domain."

type cmdLine struct {
	fnField  string
	bands    int
	comps    int
	maxIter  int
	debug    int
	likeOnly bool
	v        bool
}

func parseCommandLine() *cmdLine {
	var cl cmdLine
	flag.IntVar(&cl.bands, "b", 5, "observation bands per field")
	flag.IntVar(&cl.comps, "k", 2, "color prior mixture components")
	flag.IntVar(&cl.maxIter, "i", 300, "optimizer iteration cap")
	flag.IntVar(&cl.debug, "d", 0, "log verbosity, 2 traces fit iterations")
	flag.BoolVar(&cl.likeOnly, "l", false,
		"fast likelihood fit: free brightness and position only")
	flag.BoolVar(&cl.v, "v", false, "display version and copyright")
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage: skyvi [options] <fieldfile>    Fit sources in field file.
       skyvi -v                       Display version and copyright.

Options:
     -b <bands>
     -k <color components>
     -i <iteration cap>
     -d <log verbosity>
     -l
`)
	}
	flag.Parse()
	if cl.v {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	cl.fnField = flag.Arg(0)
	if cl.debug > 0 {
		// klog keeps its own flag set so -v stays the version flag
		fs := flag.NewFlagSet("klog", flag.ContinueOnError)
		klog.InitFlags(fs)
		fs.Set("v", strconv.Itoa(cl.debug))
	}
	return &cl
}

func Main() {
	defer exit.Handler()

	cl := parseCommandLine()
	fields, err := fieldio.ReadFile(cl.fnField)
	if err != nil {
		exit.Log(err)
	}
	lay := param.New(cl.bands, cl.comps)
	tol := fit.DefaultTolerances()
	tol.MaxIter = cl.maxIter

	// fields are fit concurrently.  each field's model is owned by the
	// goroutine fitting it; the priors are shared and immutable.  result
	// channels are queued in submission order so output stays ordered no
	// matter which worker finishes first.
	maxWorkers := runtime.GOMAXPROCS(0)
	if maxWorkers > len(fields) {
		maxWorkers = len(fields)
	}
	type job struct {
		f   fieldio.Field
		rch chan string
	}
	jobCh := make(chan job)
	prCh := make(chan chan string, maxWorkers*2)
	go func() {
		for _, f := range fields {
			rch := make(chan string, 1)
			prCh <- rch
			jobCh <- job{f, rch}
		}
		close(jobCh)
		close(prCh)
	}()
	pri := param.DefaultPriors(lay)
	for n := 0; n < maxWorkers; n++ {
		go func() {
			for j := range jobCh {
				j.rch <- solve(lay, pri, j.f, cl.likeOnly, tol)
			}
		}()
	}

	fmt.Println("Field     Src  P(gal)        X        Y     Flux  Conv")
	for rch := range prCh {
		fmt.Print(<-rch)
	}
}

// solve fits one field and formats its result block.
func solve(lay *param.Layout, pri *param.Priors, f fieldio.Field,
	likeOnly bool, tol fit.Tolerances) string {

	e, err := elbo.New(lay, pri, f.Stamps)
	if err != nil {
		return fmt.Sprintf("%-8s  %v\n", f.Name, err)
	}
	var m *param.Model
	if len(f.Entries) > 0 {
		m, err = seed.FromCatalog(lay, pri, f.Entries, f.Stamps)
	} else {
		m, err = seed.FromPeaks(lay, pri, f.Stamps, seed.DefaultPeakOpts())
	}
	if err != nil {
		return fmt.Sprintf("%-8s  %v\n", f.Name, err)
	}
	var r *fit.Result
	if likeOnly {
		r, err = fit.Likelihood(e, m, tol)
	} else {
		r, err = fit.Full(e, m, tol)
	}
	if err != nil {
		return fmt.Sprintf("%-8s  %v\n", f.Name, err)
	}

	var b strings.Builder
	for i, v := range r.Model.Sources {
		conv := "y"
		if !r.Converged {
			conv = "n"
		}
		fmt.Fprintf(&b, "%-8s  %3d  %6.3f %8.2f %8.2f %8.0f     %s\n",
			f.Name, i, v[lay.Ind(param.Gal)],
			v[lay.PosX()], v[lay.PosY()],
			expFlux(v, lay), conv)
	}
	return b.String()
}

func expFlux(v param.Vector, lay *param.Layout) float64 {
	// expected reference band flux of the fitted source
	m := v[lay.BrightMean()]
	s := v[lay.BrightVar()]
	return math.Exp(m + .5*s)
}
