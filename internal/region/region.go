package region

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
)

var (
	ErrSourceNotFound = errors.New("vector source not found")
	ErrProjection     = errors.New("projection error")
)

// BoundingBox is an axis-aligned rectangle in some coordinate reference
// system. West <= East and South <= North.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

func FromBound(b orb.Bound) BoundingBox {
	return BoundingBox{West: b.Min.X(), South: b.Min.Y(), East: b.Max.X(), North: b.Max.Y()}
}

func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

func (b BoundingBox) Polygon() orb.Polygon {
	return b.Bound().ToPolygon()
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", b.West, b.South, b.East, b.North)
}

// ignoreWarnings keeps GDAL warnings from failing vector reads.
func ignoreWarnings(ec godal.ErrorCategory, code int, msg string) error {
	if ec <= godal.CE_Warning {
		return nil
	}
	return errors.New(msg)
}

// Locate returns the bounding box of every feature of the first layer of the
// vector file at path, reprojected to targetCRS. targetCRS is anything GDAL
// accepts as user input ("EPSG:4326", a PROJ string, WKT).
//
// Only the (min, min) and (max, max) corners of the native box are
// reprojected, so the result approximates the true envelope under rotated or
// non-linear transforms.
func Locate(path, targetCRS string) (BoundingBox, error) {
	if _, err := os.Stat(path); err != nil {
		return BoundingBox{}, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}

	ds, err := godal.Open(path, godal.VectorOnly(), godal.ErrLogger(ignoreWarnings))
	if err != nil {
		return BoundingBox{}, fmt.Errorf("%w: failed to open %s: %v", ErrSourceNotFound, path, err)
	}
	defer ds.Close()

	layers := ds.Layers()
	if len(layers) == 0 {
		return BoundingBox{}, fmt.Errorf("%w: %s has no layers", ErrSourceNotFound, path)
	}
	layer := layers[0]

	native, err := layerBounds(layer)
	if err != nil {
		return BoundingBox{}, fmt.Errorf("%s: %w", path, err)
	}

	srcSR := layer.SpatialRef()
	if wkt, err := srcSR.WKT(); err != nil || wkt == "" {
		return BoundingBox{}, fmt.Errorf("%w: %s has no spatial reference", ErrProjection, path)
	}

	return Reproject(native, srcSR, targetCRS)
}

// layerBounds is the extent of the layer. Features without geometry do not
// contribute.
func layerBounds(layer godal.Layer) (BoundingBox, error) {
	env, err := layer.Bounds()
	if err != nil {
		return BoundingBox{}, fmt.Errorf("%w: no feature geometries", ErrSourceNotFound)
	}
	return FromBound(orb.Bound{Min: orb.Point{env[0], env[1]}, Max: orb.Point{env[2], env[3]}}), nil
}

// Reproject transforms the (West, South) and (East, North) corners of box
// from src to targetCRS. The result is normalised so West <= East and
// South <= North.
func Reproject(box BoundingBox, src *godal.SpatialRef, targetCRS string) (BoundingBox, error) {
	dst, err := godal.NewSpatialRef(targetCRS)
	if err != nil {
		return BoundingBox{}, fmt.Errorf("%w: invalid target CRS %q: %v", ErrProjection, targetCRS, err)
	}
	defer dst.Close()

	if src.IsSame(dst) {
		return box, nil
	}

	tr, err := godal.NewTransform(src, dst)
	if err != nil {
		return BoundingBox{}, fmt.Errorf("%w: %v", ErrProjection, err)
	}
	defer tr.Close()

	xs := []float64{box.West, box.East}
	ys := []float64{box.South, box.North}
	if err := tr.TransformEx(xs, ys, nil, nil); err != nil {
		return BoundingBox{}, fmt.Errorf("%w: %v", ErrProjection, err)
	}
	for i := range xs {
		if math.IsInf(xs[i], 0) || math.IsNaN(xs[i]) || math.IsInf(ys[i], 0) || math.IsNaN(ys[i]) {
			return BoundingBox{}, fmt.Errorf("%w: corner %d is outside the target CRS domain", ErrProjection, i)
		}
	}
	return BoundingBox{
		West:  math.Min(xs[0], xs[1]),
		South: math.Min(ys[0], ys[1]),
		East:  math.Max(xs[0], xs[1]),
		North: math.Max(ys[0], ys[1]),
	}, nil
}
