package matrix

import "math"

// Point is a city position as read from a NODE_COORD_SECTION.
// For GEO instances X is the latitude and Y the longitude, both in the
// TSPLIB DDD.MM notation.
type Point struct {
	X, Y float64
}

// TSPLIB GEO constants. PI is deliberately the truncated TSPLIB value so
// distances match published optimal tour lengths.
const (
	geoPI     = 3.141592
	geoRadius = 6378.388
)

// Euclidean builds the EUC_2D cost matrix: cost = round(√(Δx²+Δy²)·mag).
// A non-positive magnification is treated as 1.
//
// Complexity: O(n²).
func Euclidean(points []Point, magnification float64) (*Dense, error) {
	if magnification <= 0 {
		magnification = 1
	}
	n := len(points)
	d, err := NewDense(n)
	if err != nil {
		return nil, err
	}

	var (
		i, j   int
		dx, dy float64
		c      int
	)
	for i = 0; i < n; i++ {
		for j = i + 1; j < n; j++ {
			dx = points[i].X - points[j].X
			dy = points[i].Y - points[j].Y
			c = int(math.Round(math.Sqrt(dx*dx+dy*dy) * magnification))
			d.data[i*n+j] = c
			d.data[j*n+i] = c
		}
	}

	return d, nil
}

// geoRadians converts a DDD.MM coordinate into radians the TSPLIB way:
// the integral part is degrees and the fraction is minutes.
func geoRadians(x float64) float64 {
	deg := math.Trunc(x)
	minutes := x - deg

	return geoPI * (deg + 5.0*minutes/3.0) / 180.0
}

// Geo builds the GEO cost matrix using the TSPLIB idealized-sphere
// distance, truncated and offset by one kilometre. The diagonal is zero.
//
// Complexity: O(n²).
func Geo(points []Point) (*Dense, error) {
	n := len(points)
	d, err := NewDense(n)
	if err != nil {
		return nil, err
	}
	lat := make([]float64, n)
	lon := make([]float64, n)
	var i, j int
	for i = 0; i < n; i++ {
		lat[i] = geoRadians(points[i].X)
		lon[i] = geoRadians(points[i].Y)
	}

	var q1, q2, q3, arg float64
	var c int
	for i = 0; i < n; i++ {
		for j = i + 1; j < n; j++ {
			q1 = math.Cos(lon[i] - lon[j])
			q2 = math.Cos(lat[i] - lat[j])
			q3 = math.Cos(lat[i] + lat[j])
			arg = 0.5 * ((1.0+q1)*q2 - (1.0-q1)*q3)
			// Rounding noise may push identical points just past 1.
			if arg > 1 {
				arg = 1
			} else if arg < -1 {
				arg = -1
			}
			c = int(geoRadius*math.Acos(arg) + 1.0)
			d.data[i*n+j] = c
			d.data[j*n+i] = c
		}
	}

	return d, nil
}
