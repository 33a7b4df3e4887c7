package physics

// Parameter vector consumed by vessel_create. The order is part of the native ABI
// and must not change.
const (
	ParamX = iota
	ParamY
	ParamZ
	ParamHeading
	ParamRoll
	ParamPitch
	ParamSurge
	ParamSway
	ParamHeave
	ParamYawRate
	ParamRollRate
	ParamPitchRate
	ParamThrottle
	ParamRudderAngle
	ParamMass
	ParamLength
	ParamBeam
	ParamDraft
	ParamBlockCoefficient // optional
	ParamRudderForceCoefficient
	ParamRudderStallAngle
	ParamRudderMaxAngle
	ParamDragCoefficient
	ParamYawDamping
	ParamYawDampingQuad
	ParamSwayDamping
	ParamMaxThrust
	ParamMaxSpeed
	ParamRollDamping
	ParamPitchDamping
	ParamHeaveStiffness
	ParamHeaveDamping

	ParamCount
)

// Environment vector passed to vessel_step.
const (
	EnvWindSpeed = iota
	EnvWindDirection
	EnvCurrentSpeed
	EnvCurrentDirection
	EnvSeaState

	EnvCount
)

// Output fields read through vessel_get.
const (
	FieldX = iota
	FieldY
	FieldZ
	FieldHeading
	FieldRoll
	FieldPitch
	FieldSurge
	FieldSway
	FieldHeave
	FieldYawRate
	FieldRollRate
	FieldPitchRate
	FieldRPM
	FieldFuel
	FieldThrottle
	FieldRudderAngle
	FieldBallast

	FieldCount
)
