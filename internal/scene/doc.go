// Package scene loads simulation scenes and builds them onto a frp.State.
//
// A scene is a YAML or CUE document:
//
//	name: walker
//	dt: 0.5
//	ticks: 4
//	globals:
//	  - name: gravity
//	    constant: -9.8
//	entities:
//	  - name: player
//	    properties:
//	      - name: velocity
//	        constant: [1.0, 0.5]
//	      - name: position
//	        storage:
//	          init: {x: 0, y: 0, t: 0}
//	          update: |
//	            def update(s):
//	                v = get("velocity")
//	                dt = get("clock") - s["t"]
//	                s = {"x": s["x"] + v[0] * dt, "y": s["y"] + v[1] * dt, "t": get("clock")}
//	                return [s["x"], s["y"]], s
//	sample: [player.position]
//
// Properties are registered as frp.Named[any] under their scene name, so
// application code can read them with frp.Named[T].
package scene
