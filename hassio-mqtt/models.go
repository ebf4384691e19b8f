package hassiomqtt

// DeviceModel describes the physical device an entity belongs to.
// UniqueID must be set on the entity for HASS to use this information.
type DeviceModel struct {
	// A list of IDs that uniquely identify the device (such as serial number)
	Identifiers []string `json:"identifiers,omitempty"`

	// The manufacturer of the device
	Manufacturer string `json:"manufacturer,omitempty"`

	// The model of the device
	Model string `json:"model,omitempty"`

	// The name of the device
	Name string `json:"name,omitempty"`

	// SerialNumber of the device
	SerialNumber string `json:"serial_number,omitempty"`

	// HardwareVersion of the device
	HardwareVersion string `json:"hw_version,omitempty"`

	// SoftwareVersion of the device
	SoftwareVersion string `json:"sw_version,omitempty"`

	// SuggestedArea if a device isn't already in one
	SuggestedArea string `json:"suggested_area,omitempty"`
}

type EntityModel struct {
	// Device indicates which device this entity is part of
	Device *DeviceModel `json:"device,omitempty"`

	// DeviceClass is one of the well-known HASS device classes, such as
	// 'temperature', 'humidity', etc.
	DeviceClass string `json:"device_class,omitempty"`

	// Icon is one of the MDI icons, eg. "mdi:home"
	Icon string `json:"icon,omitempty"`

	// Name specifies the HASS default display name
	Name string `json:"name,omitempty"`

	// ObjectID overrides the automatic entity id in hass
	ObjectID string `json:"object_id,omitempty"`

	// StateTopic is the MQTT topic subscribed to receive values
	StateTopic string `json:"state_topic,omitempty"`

	// UniqueID is an ID uniquely identifying this entity
	UniqueID string `json:"unique_id,omitempty"`

	// ValueTemplate defines the template to extract the value
	ValueTemplate string `json:"value_template,omitempty"`
}

type SensorModel struct {
	EntityModel

	// SuggestedDisplayPrecision is the number of decimals that should be shown
	SuggestedDisplayPrecision int `json:"suggested_display_precision,omitempty"`

	// StateClass is one of 'measurement', 'total' or 'total_increasing'
	StateClass string `json:"state_class,omitempty"`

	// UnitOfMeasurement defines the measurement units of the sensor (if any)
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
}
