// Package temporal runs AI jobs as Temporal workflow executions.
//
// The AI workers register IngestDocumentWorkflow, SummarizeWorkflow and
// CLOCheckWorkflow on a shared task queue. JobClient starts one execution per
// submitted job and uses the workflow ID as the job ID, so it can stand in for
// the HTTP AI client wherever an aiservice.JobClient is expected:
//
//	c, err := temporal.NewClient(temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "default",
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	jobs := temporal.NewJobClient(c, "ai-jobs", logger)
//	defer jobs.Close()
//
// Workflow execution states map onto job states as follows:
//
//	RUNNING, CONTINUED_AS_NEW        RUNNING
//	COMPLETED                        SUCCEEDED (result loaded from the run)
//	FAILED, TERMINATED, TIMED_OUT    FAILED (error taken from the run)
//	CANCELED                         CANCELED
package temporal
