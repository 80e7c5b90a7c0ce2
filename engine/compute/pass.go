package compute

import "fmt"

// Pass is the render pass category a command is scheduled in. The engine does not interpret it.
type Pass int

const (
	PassEnvironment Pass = iota
	PassCompute
	PassGlobe
	PassTerrainClassification
	Pass3DTile
	Pass3DTileClassification
	Pass3DTileClassificationIgnoreShow
	PassOpaque
	PassTranslucent
	PassVoxels
	PassOverlay
)

var passNames = [...]string{
	PassEnvironment:                    "ENVIRONMENT",
	PassCompute:                        "COMPUTE",
	PassGlobe:                          "GLOBE",
	PassTerrainClassification:          "TERRAIN_CLASSIFICATION",
	Pass3DTile:                         "3D_TILE",
	Pass3DTileClassification:           "3D_TILE_CLASSIFICATION",
	Pass3DTileClassificationIgnoreShow: "3D_TILE_CLASSIFICATION_IGNORE_SHOW",
	PassOpaque:                         "OPAQUE",
	PassTranslucent:                    "TRANSLUCENT",
	PassVoxels:                         "VOXELS",
	PassOverlay:                        "OVERLAY",
}

func (p Pass) String() string {
	if p < 0 || int(p) >= len(passNames) {
		return fmt.Sprintf("Pass(%d)", int(p))
	}
	return passNames[p]
}

// NumberOfPasses is the count of defined passes.
const NumberOfPasses = int(PassOverlay) + 1
