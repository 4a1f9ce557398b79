/*
Command skyvi fits a generative probabilistic model of a multi-band
astronomical image to catalog the celestial sources present in it.

Contents

Version 0.1

  Program overview
  Command line usage
  File formats
  Algorithm outline

Program overview

Input is a field file holding, per field, one calibrated image stamp per
observation band and an optional catalog of initial source guesses.  Output
is one line per fitted source with its galaxy probability, position and
reference-band brightness.

Sample run, on a field file produced by the companion program mkfield:

  skyvi demo.field

gives output like:

  Field     Src  P(gal)        X        Y     Flux  Conv
  demo        0   0.000    10.10    12.20    10000     y
  demo        1   0.996    40.51    38.89     8011     y

The first source is confidently a star, the second a galaxy.  The Conv
column reports whether the optimizer met its tolerances; when it did not,
the best iterate found is still printed.

Command line usage

Invoking the program without arguments (or with invalid arguments) shows
this usage prompt.

  Usage: skyvi [options] <fieldfile>    Fit sources in field file.
         skyvi -v                       Display version and copyright.

  Options:
       -b <bands>
       -k <color components>
       -i <iteration cap>
       -d <log verbosity>
       -l

The -l option runs the fast likelihood fit, freeing only brightness and
position; by default all variational parameters are optimized against the
full evidence lower bound.  At -d 2 and above the optimizer traces its
iterations to standard error.

File formats

A field file is a gob encoded sequence of fields.  Each field carries a
name, its image stamps (pixel electron counts, per-pixel noise variance,
optional sky plane and bad-pixel mask, a world coordinate transform and a
Gaussian-mixture PSF model) and catalog entries used to seed sources.
Fields with no catalog entries are seeded by peak detection instead.  The
program mkfield writes a synthetic field file suitable for experiments.

Algorithm outline

1.  Each source is described by a variational posterior over its type
(star or galaxy), position, per-band brightness, colors and galaxy shape.

2.  The expected flux of every source is rendered onto each stamp through
the stamp's PSF: a point-source rendering for the star hypothesis and a
two-component de Vaucouleurs/exponential profile for the galaxy hypothesis,
each convolved with the position distribution.

3.  The evidence lower bound (ELBO), the expected log-likelihood of the
observed pixel counts under a Gaussian noise model minus closed-form KL
divergence penalties against the priors, is computed along with its exact
analytic gradient.

4.  A bound-constrained quasi-Newton search drives the free parameters,
mapped to an unconstrained space, to a local optimum of the ELBO.  Fields
are fit concurrently; each field's parameters are owned by one worker.

-------------
Public domain.
*/
package main
