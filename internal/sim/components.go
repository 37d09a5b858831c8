package sim

import "sort"

// Engine-side prim paths for the fixed scene topology.
const (
	MapPrimPath   = "/env"
	RobotName     = "robot"
	RobotPrimPath = "/" + RobotName
)

// Logical component names. The scheduler drives each of these at its own
// sub-rate; their auto-publishers are disabled at load time so manual ticks
// are the only publish path.
const (
	CompClock     = "clock"
	CompDiffBase  = "diff_base"
	CompLidar     = "lidar"
	CompRGBD      = "rgbd"
	CompTF        = "tf"
	CompTFSensors = "tf_sensors"
)

// ComponentRegistry maps logical component names to engine prim paths. It is
// built once at daemon start and never mutated.
type ComponentRegistry map[string]string

// DefaultComponents returns the registry for the fixed robot topology.
func DefaultComponents() ComponentRegistry {
	return ComponentRegistry{
		CompClock:     "/ROS_Clock",
		CompDiffBase:  RobotPrimPath + "/ROS_DifferentialBase",
		CompLidar:     RobotPrimPath + "/ROS_Lidar",
		CompRGBD:      RobotPrimPath + "/ROS_Camera_Stereo_Left",
		CompTFSensors: RobotPrimPath + "/ROS_Carter_Sensors_Broadcaster",
		CompTF:        RobotPrimPath + "/ROS_Carter_Broadcaster",
	}
}

// SortedPaths returns all prim paths ordered by component name, so bulk
// operations over the registry are deterministic.
func (r ComponentRegistry) SortedPaths() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(r))
	for _, name := range names {
		paths = append(paths, r[name])
	}
	return paths
}
