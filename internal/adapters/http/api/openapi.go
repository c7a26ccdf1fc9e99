package api

import "net/http"

// HandleOpenAPI serves the OpenAPI description of the status endpoints.
func HandleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write([]byte(openAPISpec))
}

const openAPISpec = `openapi: 3.0.3
info:
  title: maskgen status
  version: "1"
paths:
  /healthz:
    get:
      summary: Liveness probe
      responses:
        "200":
          description: Process is up
  /stats:
    get:
      summary: Progress of the current mask generation run
      responses:
        "200":
          description: Progress snapshot
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Progress"
  /metrics:
    get:
      summary: Prometheus metrics
      responses:
        "200":
          description: Prometheus text exposition
components:
  schemas:
    Progress:
      type: object
      properties:
        run_id: {type: string}
        stage: {type: string}
        total: {type: integer}
        processed: {type: integer}
        ok: {type: integer}
        skipped: {type: integer}
        failed: {type: integer}
        started_at: {type: string, format: date-time}
`
