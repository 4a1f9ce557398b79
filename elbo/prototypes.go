// Public domain.

package elbo

// Gaussian mixture approximations of the standard galaxy radial profiles,
// after Hogg & Lang's fits.  Variances are in units of the squared effective
// radius; amplitudes are normalized to unit total flux at init.

var expAmp = []float64{
	2.34853813e-3, 3.07995260e-2, 2.23364214e-1,
	1.17949102, 4.33873750, 5.99820770,
}

var expVar = []float64{
	1.20078965e-3, 8.84526493e-3, 3.91463084e-2,
	1.39976817e-1, 4.60962500e-1, 1.50159566,
}

var devAmp = []float64{
	4.26347652e-2, 2.40127183e-1, 6.85907632e-1, 1.51937350,
	2.83627243, 4.46467501, 5.72440830, 5.60989349,
}

var devVar = []float64{
	2.23759216e-4, 1.00220099e-3, 4.18731126e-3, 1.69432589e-2,
	6.84850479e-2, 2.87207080e-1, 1.33320254, 8.40215071,
}

func init() {
	normalize(expAmp)
	normalize(devAmp)
}

func normalize(a []float64) {
	var sum float64
	for _, v := range a {
		sum += v
	}
	for i := range a {
		a[i] /= sum
	}
}
