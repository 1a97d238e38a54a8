package ownmap

// Feature type codes written as the type byte of map records.
// The values follow the commonly used navigation-device type table.
const (
	PointTypeCity       uint8 = 0x0d
	PointTypeAmenity    uint8 = 0x2f
	PointTypeShop       uint8 = 0x2e
	PointTypeAttraction uint8 = 0x2c

	LineTypeMotorway    uint8 = 0x01
	LineTypePrincipal   uint8 = 0x02
	LineTypeArterial    uint8 = 0x04
	LineTypeResidential uint8 = 0x06
	LineTypeTrack       uint8 = 0x0a
	LineTypeFootway     uint8 = 0x16
	LineTypeFerry       uint8 = 0x1b

	ShapeTypeBuilding uint8 = 0x13
	ShapeTypeLand     uint8 = 0x4e
	ShapeTypeWater    uint8 = 0x3c
	ShapeTypePark     uint8 = 0x17
)
